package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bezzego/request-bot/internal/domain/requests"
)

type fakeStore struct {
	due     []requests.Reminder
	request *requests.Request
	sent    []int64
}

func (f *fakeStore) DueReminders(_ context.Context, _ time.Time, _ int) ([]requests.Reminder, error) {
	return f.due, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, _ int64) (*requests.Request, error) {
	if f.request == nil {
		return nil, requests.ErrNotFound
	}
	return f.request, nil
}

type fakeRecipients struct {
	chats map[int64]int64 // внутренний id → chat id
}

func (f *fakeRecipients) TelegramIDsByUserIDs(_ context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		if chat, ok := f.chats[id]; ok {
			out = append(out, chat)
		}
	}
	return out, nil
}

type fakeSender struct {
	sent    map[int64][]string
	failFor map[int64]bool
}

func (f *fakeSender) SendText(chatID int64, text string) error {
	if f.failFor[chatID] {
		return errors.New("blocked")
	}
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchOnce(t *testing.T) {
	store := &fakeStore{
		due: []requests.Reminder{
			{ID: 1, RequestID: 10, Type: requests.ReminderDeadline, RecipientIDs: []int64{100, 200}},
		},
		request: &requests.Request{ID: 10, Number: "20260820-001"},
	}
	recipients := &fakeRecipients{chats: map[int64]int64{100: 555, 200: 777}}
	sender := &fakeSender{}

	d := New(store, recipients, sender, testLogger(), time.Minute, 50)
	d.dispatchOnce(context.Background())

	assert.Len(t, sender.sent[555], 1)
	assert.Len(t, sender.sent[777], 1)
	assert.Contains(t, sender.sent[555][0], "20260820-001")
	assert.Equal(t, []int64{1}, store.sent)
}

func TestDispatchOncePartialDelivery(t *testing.T) {
	store := &fakeStore{
		due: []requests.Reminder{
			{ID: 2, RequestID: 10, Type: requests.ReminderOverdue, RecipientIDs: []int64{100, 200}},
		},
		request: &requests.Request{ID: 10, Number: "20260820-001"},
	}
	recipients := &fakeRecipients{chats: map[int64]int64{100: 555, 200: 777}}
	sender := &fakeSender{failFor: map[int64]bool{555: true}}

	d := New(store, recipients, sender, testLogger(), time.Minute, 50)
	d.dispatchOnce(context.Background())

	// хотя бы одна доставка — напоминание отмечено
	assert.Equal(t, []int64{2}, store.sent)
	assert.Len(t, sender.sent[777], 1)
}

func TestDispatchOnceNobodyReachable(t *testing.T) {
	store := &fakeStore{
		due: []requests.Reminder{
			{ID: 3, RequestID: 10, Type: requests.ReminderInspection, RecipientIDs: []int64{100}},
		},
		request: &requests.Request{ID: 10, Number: "20260820-001"},
	}
	recipients := &fakeRecipients{chats: map[int64]int64{}}
	sender := &fakeSender{}

	d := New(store, recipients, sender, testLogger(), time.Minute, 50)
	d.dispatchOnce(context.Background())

	assert.Empty(t, store.sent, "без доставки напоминание остаётся в очереди")
}

func TestText(t *testing.T) {
	insp := time.Date(2026, 8, 22, 11, 0, 0, 0, time.UTC)
	req := &requests.Request{Number: "20260820-001", InspectionAt: &insp}

	cases := []struct {
		typ  requests.ReminderType
		want string
	}{
		{requests.ReminderInspection, "осмотр"},
		{requests.ReminderDeadline, "Срок устранения"},
		{requests.ReminderOverdue, "просрочена"},
		{requests.ReminderDocSign, "подписанию"},
		{requests.ReminderReport, "отчёт"},
	}
	for _, tc := range cases {
		text := Text(requests.Reminder{Type: tc.typ}, req)
		require.Contains(t, text, "20260820-001")
		assert.Contains(t, text, tc.want)
	}
}
