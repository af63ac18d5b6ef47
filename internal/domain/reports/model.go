package reports

import "time"

// Filter — период по дате создания, опционально статус.
type Filter struct {
	From   time.Time
	To     time.Time
	Status string
}

type Row struct {
	Number     string
	Title      string
	Status     string
	ObjectName string
	Specialist string
	Master     string

	CreatedAt time.Time
	DueAt     *time.Time

	PlannedBudget float64
	ActualBudget  float64
	PlannedHours  float64
	ActualHours   float64
}
