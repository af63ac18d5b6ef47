package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_transitions_total",
		Help: "Переходы статусов заявок.",
	}, []string{"to_status"})

	RemindersScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_scheduled_total",
		Help: "Поставленные в очередь напоминания.",
	}, []string{"type"})

	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Доставленные напоминания.",
	}, []string{"type"})
)
