package requests

import (
	"context"
	"time"
)

// Store — операции персистентности ядра. Реализация привязана к одной
// открытой транзакции: все вызовы внутри одного метода сервиса либо
// фиксируются вместе, либо откатываются вместе.
type Store interface {
	GetRequest(ctx context.Context, id int64) (*Request, error)
	InsertRequest(ctx context.Context, r *Request) error
	UpdateRequest(ctx context.Context, r *Request) error

	InsertWorkItem(ctx context.Context, it *WorkItem) error
	UpdateWorkItem(ctx context.Context, it *WorkItem) error
	WorkItemByName(ctx context.Context, requestID int64, name string) (*WorkItem, error)
	// SumWorkItems возвращает суммы по строкам сметы; NULL-колонки считаются нулём.
	SumWorkItems(ctx context.Context, requestID int64) (Totals, error)

	InsertWorkSession(ctx context.Context, s *WorkSession) error
	UpdateWorkSession(ctx context.Context, s *WorkSession) error
	// OpenSession возвращает последнюю незакрытую смену мастера по заявке,
	// nil — если такой нет.
	OpenSession(ctx context.Context, requestID, masterID int64) (*WorkSession, error)
	SessionByID(ctx context.Context, id int64) (*WorkSession, error)
	SumSessionHours(ctx context.Context, requestID int64) (float64, error)

	AppendHistory(ctx context.Context, h *StageHistory) error

	InsertReminder(ctx context.Context, rem *Reminder) error
	// DeletePendingReminders удаляет неотправленные напоминания данного типа
	// по заявке и возвращает число удалённых строк.
	DeletePendingReminders(ctx context.Context, requestID int64, typ ReminderType) (int64, error)

	FindOrCreateObject(ctx context.Context, name, address string) (*Object, error)
	FindOrCreateContract(ctx context.Context, name string) (*Contract, error)
	FindOrCreateDefectType(ctx context.Context, name string) (*DefectType, error)

	// NextRequestNumber выдаёт следующий номер в сквозной нумерации за день.
	NextRequestNumber(ctx context.Context, day time.Time) (string, error)
}

// TxManager открывает транзакцию и передаёт в fn привязанный к ней Store.
// Ошибка fn откатывает транзакцию целиком.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}
