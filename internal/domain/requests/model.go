package requests

import "time"

type Status string

const (
	StatusNew                 Status = "new"
	StatusInspectionScheduled Status = "inspection_scheduled"
	StatusInspected           Status = "inspected"
	StatusAssigned            Status = "assigned"
	StatusInProgress          Status = "in_progress"
	StatusCompleted           Status = "completed"
	StatusReadyForSign        Status = "ready_for_sign"
	StatusClosed              Status = "closed"
	StatusCancelled           Status = "cancelled"
)

// Title Русское название статуса для сообщений и отчётов.
func (s Status) Title() string {
	switch s {
	case StatusNew:
		return "Новая"
	case StatusInspectionScheduled:
		return "Осмотр назначен"
	case StatusInspected:
		return "Осмотр выполнен"
	case StatusAssigned:
		return "Назначен мастер"
	case StatusInProgress:
		return "В работе"
	case StatusCompleted:
		return "Работы завершены"
	case StatusReadyForSign:
		return "Готова к подписанию"
	case StatusClosed:
		return "Закрыта"
	case StatusCancelled:
		return "Отменена"
	}
	return string(s)
}

func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

type Request struct {
	ID          int64
	Number      string // человекочитаемый номер, например 20260829-003
	Title       string
	Description string
	Status      Status

	ClientID     *int64
	SpecialistID *int64
	EngineerID   *int64
	MasterID     *int64

	ObjectID     int64
	ContractID   *int64
	DefectTypeID *int64

	RemedyTermDays int

	InspectionAt     *time.Time // запланированный осмотр
	InspectedAt      *time.Time // фактическое завершение осмотра
	InspectionNotes  string
	MasterAssignedAt *time.Time
	WorkStartedAt    *time.Time
	WorkCompletedAt  *time.Time
	DueAt            *time.Time
	CompletionNotes  string

	PlannedBudget float64
	ActualBudget  float64
	PlannedHours  float64
	ActualHours   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

type WorkItemKind string

const (
	WorkItemWork     WorkItemKind = "work"
	WorkItemMaterial WorkItemKind = "material"
)

type WorkItem struct {
	ID        int64
	RequestID int64
	Name      string
	Category  string
	Kind      WorkItemKind
	Unit      string

	PlannedQty   float64
	ActualQty    *float64
	PlannedHours float64
	ActualHours  *float64
	PlannedCost  float64
	ActualCost   *float64
	MaterialCost float64
	Notes        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type WorkSession struct {
	ID        int64
	RequestID int64
	MasterID  int64

	StartedAt    time.Time
	FinishedAt   *time.Time
	StartLat     *float64
	StartLon     *float64
	StartAddress string
	FinishLat    *float64
	FinishLon    *float64
	FinishAddress string

	HoursReported   *float64
	HoursCalculated *float64
}

func (s *WorkSession) Open() bool { return s.FinishedAt == nil }

// StageHistory — строка неизменяемого журнала переходов.
// FromStatus == nil только у записи о создании заявки.
type StageHistory struct {
	ID         int64
	RequestID  int64
	FromStatus *Status
	ToStatus   Status
	ActorID    int64
	Comment    string
	CreatedAt  time.Time
}

type ReminderType string

const (
	ReminderInspection ReminderType = "inspection"
	ReminderDocSign    ReminderType = "doc_sign"
	ReminderDeadline   ReminderType = "deadline"
	ReminderOverdue    ReminderType = "overdue"
	ReminderReport     ReminderType = "report"
)

type Reminder struct {
	ID           int64
	RequestID    int64
	Type         ReminderType
	ScheduledAt  time.Time
	Sent         bool
	SentAt       *time.Time
	RecipientIDs []int64 // внутренние id получателей, хранится как jsonb
	Payload      string
}

// Totals — агрегаты по строкам сметы одной заявки.
type Totals struct {
	PlannedBudget float64
	ActualBudget  float64
	PlannedHours  float64
	ActualHours   float64
}

// Справочники: уникальны по имени без учёта регистра, find-or-create.

type Object struct {
	ID      int64
	Name    string
	Address string
}

type Contract struct {
	ID     int64
	Name   string
	Number string
}

type DefectType struct {
	ID   int64
	Name string
}
