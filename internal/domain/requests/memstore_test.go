package requests

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// memStore — Store и TxManager в памяти для тестов сервиса.
// GetRequest отдаёт копию, UpdateRequest кладёт копию обратно: так тест
// ловит забытый UpdateRequest.
type memStore struct {
	requests  map[int64]*Request
	items     []*WorkItem
	sessions  []*WorkSession
	history   []StageHistory
	reminders []*Reminder

	objects   map[string]*Object
	contracts map[string]*Contract
	defects   map[string]*DefectType

	nextID  int64
	daySeqs map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		requests:  map[int64]*Request{},
		objects:   map[string]*Object{},
		contracts: map[string]*Contract{},
		defects:   map[string]*DefectType{},
		daySeqs:   map[string]int{},
	}
}

func (m *memStore) WithinTx(_ context.Context, fn func(Store) error) error {
	return fn(m)
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) GetRequest(_ context.Context, id int64) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) InsertRequest(_ context.Context, r *Request) error {
	r.ID = m.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memStore) UpdateRequest(_ context.Context, r *Request) error {
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	cp.UpdatedAt = time.Now()
	m.requests[r.ID] = &cp
	return nil
}

func (m *memStore) InsertWorkItem(_ context.Context, it *WorkItem) error {
	it.ID = m.id()
	cp := *it
	m.items = append(m.items, &cp)
	return nil
}

func (m *memStore) UpdateWorkItem(_ context.Context, it *WorkItem) error {
	for i, cur := range m.items {
		if cur.ID == it.ID {
			cp := *it
			m.items[i] = &cp
			return nil
		}
	}
	return ErrWorkItemNotFound
}

func (m *memStore) WorkItemByName(_ context.Context, requestID int64, name string) (*WorkItem, error) {
	for _, it := range m.items {
		if it.RequestID == requestID && strings.EqualFold(it.Name, name) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SumWorkItems(_ context.Context, requestID int64) (Totals, error) {
	var t Totals
	for _, it := range m.items {
		if it.RequestID != requestID {
			continue
		}
		t.PlannedBudget += it.PlannedCost + it.MaterialCost
		t.PlannedHours += it.PlannedHours
		if it.ActualCost != nil {
			t.ActualBudget += *it.ActualCost
		}
		if it.ActualHours != nil {
			t.ActualHours += *it.ActualHours
		}
	}
	return t, nil
}

func (m *memStore) InsertWorkSession(_ context.Context, ws *WorkSession) error {
	ws.ID = m.id()
	cp := *ws
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (m *memStore) UpdateWorkSession(_ context.Context, ws *WorkSession) error {
	for i, cur := range m.sessions {
		if cur.ID == ws.ID {
			cp := *ws
			m.sessions[i] = &cp
			return nil
		}
	}
	return ErrNoActiveSession
}

func (m *memStore) OpenSession(_ context.Context, requestID, masterID int64) (*WorkSession, error) {
	for i := len(m.sessions) - 1; i >= 0; i-- {
		ws := m.sessions[i]
		if ws.RequestID == requestID && ws.MasterID == masterID && ws.Open() {
			cp := *ws
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SessionByID(_ context.Context, id int64) (*WorkSession, error) {
	for _, ws := range m.sessions {
		if ws.ID == id {
			cp := *ws
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SumSessionHours(_ context.Context, requestID int64) (float64, error) {
	var sum float64
	for _, ws := range m.sessions {
		if ws.RequestID != requestID || ws.Open() {
			continue
		}
		switch {
		case ws.HoursReported != nil:
			sum += *ws.HoursReported
		case ws.HoursCalculated != nil:
			sum += *ws.HoursCalculated
		}
	}
	return sum, nil
}

func (m *memStore) AppendHistory(_ context.Context, h *StageHistory) error {
	h.ID = m.id()
	m.history = append(m.history, *h)
	return nil
}

func (m *memStore) InsertReminder(_ context.Context, rem *Reminder) error {
	rem.ID = m.id()
	cp := *rem
	m.reminders = append(m.reminders, &cp)
	return nil
}

func (m *memStore) DeletePendingReminders(_ context.Context, requestID int64, typ ReminderType) (int64, error) {
	var kept []*Reminder
	var deleted int64
	for _, rem := range m.reminders {
		if rem.RequestID == requestID && rem.Type == typ && !rem.Sent {
			deleted++
			continue
		}
		kept = append(kept, rem)
	}
	m.reminders = kept
	return deleted, nil
}

func (m *memStore) FindOrCreateObject(_ context.Context, name, address string) (*Object, error) {
	key := strings.ToLower(name)
	if o, ok := m.objects[key]; ok {
		return o, nil
	}
	o := &Object{ID: m.id(), Name: name, Address: address}
	m.objects[key] = o
	return o, nil
}

func (m *memStore) FindOrCreateContract(_ context.Context, name string) (*Contract, error) {
	key := strings.ToLower(name)
	if c, ok := m.contracts[key]; ok {
		return c, nil
	}
	c := &Contract{ID: m.id(), Name: name}
	m.contracts[key] = c
	return c, nil
}

func (m *memStore) FindOrCreateDefectType(_ context.Context, name string) (*DefectType, error) {
	key := strings.ToLower(name)
	if d, ok := m.defects[key]; ok {
		return d, nil
	}
	d := &DefectType{ID: m.id(), Name: name}
	m.defects[key] = d
	return d, nil
}

func (m *memStore) NextRequestNumber(_ context.Context, day time.Time) (string, error) {
	key := day.Format("20060102")
	m.daySeqs[key]++
	return fmt.Sprintf("%s-%03d", key, m.daySeqs[key]), nil
}

// remindersOf — неотправленные напоминания заявки данного типа.
func (m *memStore) remindersOf(requestID int64, typ ReminderType) []*Reminder {
	var out []*Reminder
	for _, rem := range m.reminders {
		if rem.RequestID == requestID && rem.Type == typ && !rem.Sent {
			out = append(out, rem)
		}
	}
	return out
}

// historyOf — записи журнала заявки в порядке добавления.
func (m *memStore) historyOf(requestID int64) []StageHistory {
	var out []StageHistory
	for _, h := range m.history {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out
}
