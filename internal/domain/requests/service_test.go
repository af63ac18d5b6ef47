package requests

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bezzego/request-bot/internal/infra/metrics"
)

var testBase = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

func newTestService(m *memStore) *Service {
	s := NewService(m, slog.New(slog.NewTextHandler(io.Discard, nil)), 10)
	s.now = func() time.Time { return testBase }
	return s
}

func createRequest(t *testing.T, s *Service, inspectionAt *time.Time) *Request {
	t.Helper()
	req, err := s.Create(context.Background(), CreateInput{
		Title:        "Течь стояка в подвале",
		Description:  "Вода на полу у входа",
		ObjectName:   "ЖК Северный, корпус 2",
		SpecialistID: 100,
		InspectionAt: inspectionAt,
	})
	require.NoError(t, err)
	return req
}

func TestCreateWithoutInspection(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)

	req := createRequest(t, s, nil)

	assert.Equal(t, StatusNew, req.Status)
	assert.Equal(t, "20260820-001", req.Number)
	assert.Nil(t, req.DueAt)

	hist := m.historyOf(req.ID)
	require.Len(t, hist, 1)
	assert.Nil(t, hist[0].FromStatus)
	assert.Equal(t, StatusNew, hist[0].ToStatus)

	assert.Empty(t, m.reminders, "без осмотра напоминаний нет")
}

func TestCreateWithInspection(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)

	insp := testBase.AddDate(0, 0, 2)
	req := createRequest(t, s, &insp)

	assert.Equal(t, StatusInspectionScheduled, req.Status)
	require.NotNil(t, req.DueAt)
	assert.Equal(t, insp.AddDate(0, 0, 10), *req.DueAt, "срок от даты осмотра")

	inspRems := m.remindersOf(req.ID, ReminderInspection)
	require.Len(t, inspRems, 1)
	assert.Equal(t, insp, inspRems[0].ScheduledAt)
	assert.Equal(t, []int64{100}, inspRems[0].RecipientIDs)

	dueRems := m.remindersOf(req.ID, ReminderDeadline)
	require.Len(t, dueRems, 1)
	assert.Equal(t, *req.DueAt, dueRems[0].ScheduledAt)
}

func TestCreateValidation(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)

	_, err := s.Create(context.Background(), CreateInput{
		Title:        "аб",
		ObjectName:   "Объект",
		SpecialistID: 100,
	})
	require.Error(t, err)
	assert.Empty(t, m.requests, "заявка не должна создаваться")
}

func TestCreateNumbersWithinDay(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)

	first := createRequest(t, s, nil)
	second := createRequest(t, s, nil)

	assert.Equal(t, "20260820-001", first.Number)
	assert.Equal(t, "20260820-002", second.Number)
}

func TestAssignEngineerSchedulesInspection(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)

	insp := testBase.AddDate(0, 0, 3)
	require.NoError(t, s.AssignEngineer(ctx, req.ID, 200, 100, &insp, "подвал, вход со двора"))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInspectionScheduled, got.Status)
	require.NotNil(t, got.InspectionAt)
	assert.Equal(t, insp, *got.InspectionAt)
	require.NotNil(t, got.EngineerID)
	assert.Equal(t, int64(200), *got.EngineerID)
	require.NotNil(t, got.DueAt)

	rems := m.remindersOf(req.ID, ReminderInspection)
	require.Len(t, rems, 1)
	assert.Equal(t, []int64{200, 100}, rems[0].RecipientIDs)

	// перенос осмотра заменяет напоминание, а не добавляет второе
	later := insp.AddDate(0, 0, 1)
	require.NoError(t, s.AssignEngineer(ctx, req.ID, 200, 100, &later, ""))
	rems = m.remindersOf(req.ID, ReminderInspection)
	require.Len(t, rems, 1)
	assert.Equal(t, later, rems[0].ScheduledAt)
}

func TestAssignEngineerWithoutTimeKeepsStatus(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignEngineer(ctx, req.ID, 200, 100, nil, ""))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, got.Status)
	require.NotNil(t, got.EngineerID)

	hist := m.historyOf(req.ID)
	require.Len(t, hist, 2)
	last := hist[1]
	require.NotNil(t, last.FromStatus)
	assert.Equal(t, last.ToStatus, *last.FromStatus, "информационная запись без смены статуса")
}

func TestRecordInspectionRequiresSchedule(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	err := s.RecordInspection(ctx, req.ID, 200, "трещина в шве", nil)

	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, StatusNew, invalid.From)
	assert.Equal(t, StatusInspected, invalid.To)
}

func TestAssignMasterAfterInspection(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	insp := testBase.AddDate(0, 0, 2)
	req := createRequest(t, s, &insp)
	require.NoError(t, s.RecordInspection(ctx, req.ID, 200, "нужна замена стояка", nil))
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, got.Status)
	require.NotNil(t, got.MasterID)
	require.NotNil(t, got.MasterAssignedAt)
	require.NotNil(t, got.DueAt)
	assert.Equal(t, insp.AddDate(0, 0, 10), *got.DueAt, "существующий срок не переписывается")

	// напоминание о сроке заменено, о просрочке добавлено
	dueRems := m.remindersOf(req.ID, ReminderDeadline)
	require.Len(t, dueRems, 1)
	assert.Equal(t, []int64{300, 100}, dueRems[0].RecipientIDs)

	overdue := m.remindersOf(req.ID, ReminderOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, got.DueAt.AddDate(0, 0, 1), overdue[0].ScheduledAt)
}

func TestAssignMasterWithoutInspectionSetsDue(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueAt)
	assert.Equal(t, testBase.AddDate(0, 0, 10), *got.DueAt, "срок от момента назначения")
}

func TestStartWorkOpensSingleSession(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))

	ws, err := s.StartWork(ctx, req.ID, 300, StartWorkInput{Address: "у щитовой"})
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.True(t, ws.Open())

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	require.NotNil(t, got.WorkStartedAt)

	_, err = s.StartWork(ctx, req.ID, 300, StartWorkInput{})
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
}

func TestFinishWorkWithoutSession(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))

	err := s.FinishWork(ctx, req.ID, 300, FinishWorkInput{})
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestFinishWorkAggregatesHours(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))

	_, err := s.StartWork(ctx, req.ID, 300, StartWorkInput{})
	require.NoError(t, err)

	finish := testBase.Add(3 * time.Hour)
	require.NoError(t, s.FinishWork(ctx, req.ID, 300, FinishWorkInput{
		FinishedAt:      &finish,
		CompletionNotes: "стояк заменён",
	}))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.InDelta(t, 3, got.ActualHours, 0.001, "часы по стене без отчёта мастера")
	assert.Equal(t, "стояк заменён", got.CompletionNotes)

	// доработка: вторая смена, мастер сам указал часы
	_, err = s.StartWork(ctx, req.ID, 300, StartWorkInput{})
	require.NoError(t, err)
	reported := 2.0
	require.NoError(t, s.FinishWork(ctx, req.ID, 300, FinishWorkInput{HoursReported: &reported}))

	got, err = m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5, got.ActualHours, 0.001, "сумма по всем сменам")
}

func TestMarkReadyForSign(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))
	_, err := s.StartWork(ctx, req.ID, 300, StartWorkInput{})
	require.NoError(t, err)
	require.NoError(t, s.FinishWork(ctx, req.ID, 300, FinishWorkInput{}))

	require.NoError(t, s.MarkReadyForSign(ctx, req.ID, 100))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForSign, got.Status)

	rems := m.remindersOf(req.ID, ReminderDocSign)
	require.Len(t, rems, 1)
	assert.Equal(t, testBase.Add(4*time.Hour), rems[0].ScheduledAt)
}

func TestCancelStoresReason(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.Cancel(ctx, req.ID, 100, "дубль заявки 20260820-001"))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "дубль заявки 20260820-001", got.CompletionNotes)

	// терминальный статус: ни отменить, ни закрыть повторно
	var invalid *InvalidTransitionError
	require.True(t, errors.As(s.Cancel(ctx, req.ID, 100, ""), &invalid))
	require.True(t, errors.As(s.Close(ctx, req.ID, 100, ""), &invalid))
}

func TestAddWorkItemRecalculatesBudget(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)

	_, err := s.AddWorkItem(ctx, req.ID, 100, WorkItemInput{
		Name:         "Замена стояка",
		Kind:         WorkItemWork,
		Unit:         "шт",
		PlannedQty:   1,
		PlannedHours: 3,
		PlannedCost:  4200,
	})
	require.NoError(t, err)

	_, err = s.AddWorkItem(ctx, req.ID, 100, WorkItemInput{
		Name:         "Труба ПП 32 мм",
		Kind:         WorkItemMaterial,
		Unit:         "м",
		PlannedQty:   6,
		MaterialCost: 1080,
	})
	require.NoError(t, err)

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5280, got.PlannedBudget, 0.001)
	assert.InDelta(t, 3, got.PlannedHours, 0.001)
	assert.Zero(t, got.ActualBudget)
}

func TestUpdateWorkItemActualIsIdempotent(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	_, err := s.AddWorkItem(ctx, req.ID, 100, WorkItemInput{
		Name: "Замена стояка", Kind: WorkItemWork, PlannedCost: 4200,
	})
	require.NoError(t, err)

	cost := 4500.0
	require.NoError(t, s.UpdateWorkItemActual(ctx, req.ID, 300, "замена стояка", ActualInput{Cost: &cost}))

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4500, got.ActualBudget, 0.001)

	// повторный ввод факта перезаписывает, а не суммирует
	cost = 4300.0
	require.NoError(t, s.UpdateWorkItemActual(ctx, req.ID, 300, "Замена стояка", ActualInput{Cost: &cost}))
	got, err = m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4300, got.ActualBudget, 0.001)
}

func TestUpdateWorkItemActualUnknownName(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	cost := 100.0
	err := s.UpdateWorkItemActual(ctx, req.ID, 300, "нет такой позиции", ActualInput{Cost: &cost})
	assert.ErrorIs(t, err, ErrWorkItemNotFound)
}

func TestHistoryOneRowPerTransition(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	insp := testBase.AddDate(0, 0, 1)
	req := createRequest(t, s, &insp)
	require.NoError(t, s.RecordInspection(ctx, req.ID, 200, "", nil))
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))
	_, err := s.StartWork(ctx, req.ID, 300, StartWorkInput{})
	require.NoError(t, err)
	require.NoError(t, s.FinishWork(ctx, req.ID, 300, FinishWorkInput{}))
	require.NoError(t, s.MarkReadyForSign(ctx, req.ID, 100))
	require.NoError(t, s.Close(ctx, req.ID, 100, ""))

	want := []Status{
		StatusInspectionScheduled, StatusInspected, StatusAssigned,
		StatusInProgress, StatusCompleted, StatusReadyForSign, StatusClosed,
	}
	hist := m.historyOf(req.ID)
	require.Len(t, hist, len(want))
	assert.Nil(t, hist[0].FromStatus)
	for i, h := range hist {
		assert.Equal(t, want[i], h.ToStatus)
		if i > 0 {
			require.NotNil(t, h.FromStatus)
			assert.Equal(t, want[i-1], *h.FromStatus)
		}
	}
}

func TestFinishWorkRejectsForeignSession(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	req := createRequest(t, s, nil)
	require.NoError(t, s.AssignMaster(ctx, req.ID, 300, 100))

	ws, err := s.StartWork(ctx, req.ID, 300, StartWorkInput{})
	require.NoError(t, err)

	// смену мастера 300 по её id может закрыть только он сам
	err = s.FinishWork(ctx, req.ID, 400, FinishWorkInput{SessionID: &ws.ID})
	assert.ErrorIs(t, err, ErrNoActiveSession)

	got, err := m.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)

	require.NoError(t, s.FinishWork(ctx, req.ID, 300, FinishWorkInput{SessionID: &ws.ID}))
}

func TestTransitionCounterOnlyAfterCommit(t *testing.T) {
	m := newMemStore()
	s := newTestService(m)
	ctx := context.Background()

	counter := metrics.RequestTransitions.WithLabelValues(string(StatusCancelled))
	before := testutil.ToFloat64(counter)

	req := createRequest(t, s, nil)
	require.NoError(t, s.Cancel(ctx, req.ID, 100, ""))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	// повторная отмена не проходит переход, счётчик не растёт
	var invalid *InvalidTransitionError
	require.True(t, errors.As(s.Cancel(ctx, req.ID, 100, ""), &invalid))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
