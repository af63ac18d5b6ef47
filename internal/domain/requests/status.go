package requests

// allowedFrom перечисляет допустимые предыдущие статусы для каждого перехода.
// Отмена разрешена из любого нетерминального статуса и обрабатывается отдельно.
var allowedFrom = map[Status][]Status{
	// повторное назначение осмотра допустимо, пока осмотр не выполнен
	StatusInspectionScheduled: {StatusNew, StatusInspectionScheduled},
	StatusInspected:           {StatusInspectionScheduled},
	// мастера можно назначить и без осмотра, и переназначить
	StatusAssigned:     {StatusNew, StatusInspectionScheduled, StatusInspected, StatusAssigned},
	StatusInProgress:   {StatusAssigned, StatusCompleted},
	StatusCompleted:    {StatusInProgress},
	StatusReadyForSign: {StatusCompleted},
	StatusClosed:       {StatusReadyForSign, StatusCompleted},
}

func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	for _, f := range allowedFrom[to] {
		if f == from {
			return true
		}
	}
	return false
}

// transition переводит заявку в новый статус или возвращает
// *InvalidTransitionError, ничего не меняя.
func transition(r *Request, to Status) error {
	if !CanTransition(r.Status, to) {
		return &InvalidTransitionError{From: r.Status, To: to}
	}
	r.Status = to
	return nil
}
