package requests

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("заявка не найдена")
	ErrNoActiveSession    = errors.New("нет открытой смены по заявке")
	ErrSessionAlreadyOpen = errors.New("по заявке уже есть открытая смена")
	ErrWorkItemNotFound   = errors.New("позиция сметы не найдена")
	ErrNoRecipient        = errors.New("не удалось определить получателей напоминания")
)

// InvalidTransitionError — попытка недопустимого перехода статуса.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("недопустимый переход статуса: %s → %s", e.From, e.To)
}
