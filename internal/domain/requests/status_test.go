package requests

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"новая → осмотр назначен", StatusNew, StatusInspectionScheduled, true},
		{"перенос осмотра", StatusInspectionScheduled, StatusInspectionScheduled, true},
		{"осмотр назначен → выполнен", StatusInspectionScheduled, StatusInspected, true},
		{"осмотр без назначения", StatusNew, StatusInspected, false},
		{"мастер без осмотра", StatusNew, StatusAssigned, true},
		{"мастер после осмотра", StatusInspected, StatusAssigned, true},
		{"переназначение мастера", StatusAssigned, StatusAssigned, true},
		{"старт работ", StatusAssigned, StatusInProgress, true},
		{"старт без мастера", StatusNew, StatusInProgress, false},
		{"доработка после завершения", StatusCompleted, StatusInProgress, true},
		{"завершение работ", StatusInProgress, StatusCompleted, true},
		{"на подписание", StatusCompleted, StatusReadyForSign, true},
		{"на подписание из работы", StatusInProgress, StatusReadyForSign, false},
		{"закрытие после подписания", StatusReadyForSign, StatusClosed, true},
		{"закрытие без подписания", StatusCompleted, StatusClosed, true},
		{"закрытие новой", StatusNew, StatusClosed, false},
		{"отмена новой", StatusNew, StatusCancelled, true},
		{"отмена из работы", StatusInProgress, StatusCancelled, true},
		{"отмена закрытой", StatusClosed, StatusCancelled, false},
		{"отмена отменённой", StatusCancelled, StatusCancelled, false},
		{"возврат из закрытой", StatusClosed, StatusInProgress, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTransitionKeepsStatusOnError(t *testing.T) {
	r := &Request{Status: StatusNew}
	err := transition(r, StatusInspected)
	require.Error(t, err)

	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, StatusNew, invalid.From)
	assert.Equal(t, StatusInspected, invalid.To)
	assert.Equal(t, StatusNew, r.Status, "статус не должен меняться при отказе")
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusClosed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusCompleted.Terminal())
	assert.False(t, StatusNew.Terminal())
}
