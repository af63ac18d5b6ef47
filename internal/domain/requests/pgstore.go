package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier покрывает и пул, и транзакцию.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo — доступ к заявкам поверх пула: транзакционный Store для сервиса
// и нетранзакционные выборки для обработчиков бота.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// WithinTx реализует TxManager.
func (r *Repo) WithinTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// pgStore — Store поверх одного querier (обычно транзакции).
type pgStore struct {
	q querier
}

const requestColumns = `
	id, number, title, description, status,
	client_id, specialist_id, engineer_id, master_id,
	object_id, contract_id, defect_type_id, remedy_term_days,
	inspection_at, inspected_at, inspection_notes,
	master_assigned_at, work_started_at, work_completed_at, due_at, completion_notes,
	planned_budget, actual_budget, planned_hours, actual_hours,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.ID, &r.Number, &r.Title, &r.Description, &r.Status,
		&r.ClientID, &r.SpecialistID, &r.EngineerID, &r.MasterID,
		&r.ObjectID, &r.ContractID, &r.DefectTypeID, &r.RemedyTermDays,
		&r.InspectionAt, &r.InspectedAt, &r.InspectionNotes,
		&r.MasterAssignedAt, &r.WorkStartedAt, &r.WorkCompletedAt, &r.DueAt, &r.CompletionNotes,
		&r.PlannedBudget, &r.ActualBudget, &r.PlannedHours, &r.ActualHours,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *pgStore) GetRequest(ctx context.Context, id int64) (*Request, error) {
	row := s.q.QueryRow(ctx, `SELECT`+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id)
	return scanRequest(row)
}

func (s *pgStore) InsertRequest(ctx context.Context, r *Request) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO requests
			(number, title, description, status,
			 client_id, specialist_id, engineer_id, master_id,
			 object_id, contract_id, defect_type_id, remedy_term_days,
			 inspection_at, due_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at
	`, r.Number, r.Title, r.Description, string(r.Status),
		r.ClientID, r.SpecialistID, r.EngineerID, r.MasterID,
		r.ObjectID, r.ContractID, r.DefectTypeID, r.RemedyTermDays,
		r.InspectionAt, r.DueAt)
	return row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *pgStore) UpdateRequest(ctx context.Context, r *Request) error {
	_, err := s.q.Exec(ctx, `
		UPDATE requests SET
			status=$2, client_id=$3, specialist_id=$4, engineer_id=$5, master_id=$6,
			remedy_term_days=$7, inspection_at=$8, inspected_at=$9, inspection_notes=$10,
			master_assigned_at=$11, work_started_at=$12, work_completed_at=$13,
			due_at=$14, completion_notes=$15,
			planned_budget=$16, actual_budget=$17, planned_hours=$18, actual_hours=$19,
			updated_at=now()
		WHERE id=$1
	`, r.ID, string(r.Status), r.ClientID, r.SpecialistID, r.EngineerID, r.MasterID,
		r.RemedyTermDays, r.InspectionAt, r.InspectedAt, r.InspectionNotes,
		r.MasterAssignedAt, r.WorkStartedAt, r.WorkCompletedAt,
		r.DueAt, r.CompletionNotes,
		r.PlannedBudget, r.ActualBudget, r.PlannedHours, r.ActualHours)
	return err
}

func (s *pgStore) InsertWorkItem(ctx context.Context, it *WorkItem) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO work_items
			(request_id, name, category, kind, unit,
			 planned_qty, actual_qty, planned_hours, actual_hours,
			 planned_cost, actual_cost, material_cost, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at, updated_at
	`, it.RequestID, it.Name, it.Category, string(it.Kind), it.Unit,
		it.PlannedQty, it.ActualQty, it.PlannedHours, it.ActualHours,
		it.PlannedCost, it.ActualCost, it.MaterialCost, it.Notes)
	return row.Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
}

func (s *pgStore) UpdateWorkItem(ctx context.Context, it *WorkItem) error {
	_, err := s.q.Exec(ctx, `
		UPDATE work_items SET
			actual_qty=$2, actual_hours=$3, actual_cost=$4, notes=$5, updated_at=now()
		WHERE id=$1
	`, it.ID, it.ActualQty, it.ActualHours, it.ActualCost, it.Notes)
	return err
}

func (s *pgStore) WorkItemByName(ctx context.Context, requestID int64, name string) (*WorkItem, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, request_id, name, category, kind, unit,
		       planned_qty, actual_qty, planned_hours, actual_hours,
		       planned_cost, actual_cost, material_cost, notes, created_at, updated_at
		FROM work_items
		WHERE request_id = $1 AND lower(name) = lower($2)
		ORDER BY id
		LIMIT 1
	`, requestID, name)
	it, err := scanWorkItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return it, err
}

func scanWorkItem(row pgx.Row) (*WorkItem, error) {
	var it WorkItem
	err := row.Scan(&it.ID, &it.RequestID, &it.Name, &it.Category, &it.Kind, &it.Unit,
		&it.PlannedQty, &it.ActualQty, &it.PlannedHours, &it.ActualHours,
		&it.PlannedCost, &it.ActualCost, &it.MaterialCost, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *pgStore) SumWorkItems(ctx context.Context, requestID int64) (Totals, error) {
	var t Totals
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(planned_cost + material_cost), 0),
		       COALESCE(SUM(actual_cost), 0),
		       COALESCE(SUM(planned_hours), 0),
		       COALESCE(SUM(actual_hours), 0)
		FROM work_items WHERE request_id = $1
	`, requestID).Scan(&t.PlannedBudget, &t.ActualBudget, &t.PlannedHours, &t.ActualHours)
	return t, err
}

func (s *pgStore) InsertWorkSession(ctx context.Context, ws *WorkSession) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO work_sessions
			(request_id, master_id, started_at, start_lat, start_lon, start_address)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, ws.RequestID, ws.MasterID, ws.StartedAt, ws.StartLat, ws.StartLon, ws.StartAddress)
	return row.Scan(&ws.ID)
}

func (s *pgStore) UpdateWorkSession(ctx context.Context, ws *WorkSession) error {
	_, err := s.q.Exec(ctx, `
		UPDATE work_sessions SET
			finished_at=$2, finish_lat=$3, finish_lon=$4, finish_address=$5,
			hours_reported=$6, hours_calculated=$7
		WHERE id=$1
	`, ws.ID, ws.FinishedAt, ws.FinishLat, ws.FinishLon, ws.FinishAddress,
		ws.HoursReported, ws.HoursCalculated)
	return err
}

const sessionColumns = `
	id, request_id, master_id, started_at, finished_at,
	start_lat, start_lon, start_address, finish_lat, finish_lon, finish_address,
	hours_reported, hours_calculated`

func scanSession(row pgx.Row) (*WorkSession, error) {
	var ws WorkSession
	err := row.Scan(&ws.ID, &ws.RequestID, &ws.MasterID, &ws.StartedAt, &ws.FinishedAt,
		&ws.StartLat, &ws.StartLon, &ws.StartAddress, &ws.FinishLat, &ws.FinishLon, &ws.FinishAddress,
		&ws.HoursReported, &ws.HoursCalculated)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *pgStore) OpenSession(ctx context.Context, requestID, masterID int64) (*WorkSession, error) {
	row := s.q.QueryRow(ctx, `
		SELECT`+sessionColumns+`
		FROM work_sessions
		WHERE request_id = $1 AND master_id = $2 AND finished_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, requestID, masterID)
	ws, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ws, err
}

func (s *pgStore) SessionByID(ctx context.Context, id int64) (*WorkSession, error) {
	row := s.q.QueryRow(ctx, `SELECT`+sessionColumns+` FROM work_sessions WHERE id = $1`, id)
	ws, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ws, err
}

func (s *pgStore) SumSessionHours(ctx context.Context, requestID int64) (float64, error) {
	var hours float64
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(COALESCE(hours_reported, hours_calculated)), 0)
		FROM work_sessions
		WHERE request_id = $1 AND finished_at IS NOT NULL
	`, requestID).Scan(&hours)
	return hours, err
}

func (s *pgStore) AppendHistory(ctx context.Context, h *StageHistory) error {
	var from *string
	if h.FromStatus != nil {
		v := string(*h.FromStatus)
		from = &v
	}
	row := s.q.QueryRow(ctx, `
		INSERT INTO request_stage_history (request_id, from_status, to_status, actor_id, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, h.RequestID, from, string(h.ToStatus), h.ActorID, h.Comment, h.CreatedAt)
	return row.Scan(&h.ID)
}

func (s *pgStore) InsertReminder(ctx context.Context, rem *Reminder) error {
	recipients, err := json.Marshal(rem.RecipientIDs)
	if err != nil {
		return err
	}
	row := s.q.QueryRow(ctx, `
		INSERT INTO request_reminders (request_id, type, scheduled_at, recipient_ids, payload)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, rem.RequestID, string(rem.Type), rem.ScheduledAt, recipients, rem.Payload)
	return row.Scan(&rem.ID)
}

func (s *pgStore) DeletePendingReminders(ctx context.Context, requestID int64, typ ReminderType) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM request_reminders
		WHERE request_id = $1 AND type = $2 AND sent = FALSE
	`, requestID, string(typ))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) FindOrCreateObject(ctx context.Context, name, address string) (*Object, error) {
	var o Object
	err := s.q.QueryRow(ctx, `
		SELECT id, name, address FROM objects WHERE lower(name) = lower($1)
	`, name).Scan(&o.ID, &o.Name, &o.Address)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	err = s.q.QueryRow(ctx, `
		INSERT INTO objects (name, address) VALUES ($1,$2)
		ON CONFLICT (lower(name)) DO UPDATE SET name = objects.name
		RETURNING id, name, address
	`, name, address).Scan(&o.ID, &o.Name, &o.Address)
	return &o, err
}

func (s *pgStore) FindOrCreateContract(ctx context.Context, name string) (*Contract, error) {
	var c Contract
	err := s.q.QueryRow(ctx, `
		SELECT id, name, number FROM contracts WHERE lower(name) = lower($1)
	`, name).Scan(&c.ID, &c.Name, &c.Number)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	err = s.q.QueryRow(ctx, `
		INSERT INTO contracts (name) VALUES ($1)
		ON CONFLICT (lower(name)) DO UPDATE SET name = contracts.name
		RETURNING id, name, number
	`, name).Scan(&c.ID, &c.Name, &c.Number)
	return &c, err
}

func (s *pgStore) FindOrCreateDefectType(ctx context.Context, name string) (*DefectType, error) {
	var d DefectType
	err := s.q.QueryRow(ctx, `
		SELECT id, name FROM defect_types WHERE lower(name) = lower($1)
	`, name).Scan(&d.ID, &d.Name)
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	err = s.q.QueryRow(ctx, `
		INSERT INTO defect_types (name) VALUES ($1)
		ON CONFLICT (lower(name)) DO UPDATE SET name = defect_types.name
		RETURNING id, name
	`, name).Scan(&d.ID, &d.Name)
	return &d, err
}

// NextRequestNumber — сквозная нумерация за день: 20260829-001, -002, …
func (s *pgStore) NextRequestNumber(ctx context.Context, day time.Time) (string, error) {
	key := day.Format("20060102")
	var seq int
	err := s.q.QueryRow(ctx, `
		INSERT INTO request_number_seq (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = request_number_seq.last_value + 1
		RETURNING last_value
	`, key).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", key, seq), nil
}

/*** Нетранзакционные выборки для бота ***/

func (r *Repo) GetByID(ctx context.Context, id int64) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+requestColumns+` FROM requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *Repo) GetByNumber(ctx context.Context, number string) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+requestColumns+` FROM requests WHERE number = $1`, number)
	return scanRequest(row)
}

// ListActiveFor возвращает нетерминальные заявки, где пользователь занимает
// указанную роль (колонка client_id/specialist_id/engineer_id/master_id).
func (r *Repo) ListActiveFor(ctx context.Context, column string, userID int64, limit int) ([]Request, error) {
	switch column {
	case "client_id", "specialist_id", "engineer_id", "master_id":
	default:
		return nil, fmt.Errorf("недопустимая колонка роли: %s", column)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+requestColumns+`
		FROM requests
		WHERE `+column+` = $1 AND status NOT IN ('closed','cancelled')
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *Repo) ListWorkItems(ctx context.Context, requestID int64) ([]WorkItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, name, category, kind, unit,
		       planned_qty, actual_qty, planned_hours, actual_hours,
		       planned_cost, actual_cost, material_cost, notes, created_at, updated_at
		FROM work_items WHERE request_id = $1 ORDER BY id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkItem
	for rows.Next() {
		it, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *Repo) ListHistory(ctx context.Context, requestID int64) ([]StageHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, from_status, to_status, actor_id, comment, created_at
		FROM request_stage_history WHERE request_id = $1 ORDER BY id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageHistory
	for rows.Next() {
		var h StageHistory
		var from *string
		if err := rows.Scan(&h.ID, &h.RequestID, &from, &h.ToStatus, &h.ActorID, &h.Comment, &h.CreatedAt); err != nil {
			return nil, err
		}
		if from != nil {
			st := Status(*from)
			h.FromStatus = &st
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DueReminders — неотправленные напоминания, чей момент наступил.
func (r *Repo) DueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, type, scheduled_at, sent, sent_at, recipient_ids, payload
		FROM request_reminders
		WHERE sent = FALSE AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		var raw []byte
		if err := rows.Scan(&rem.ID, &rem.RequestID, &rem.Type, &rem.ScheduledAt, &rem.Sent, &rem.SentAt, &raw, &rem.Payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rem.RecipientIDs); err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *Repo) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE request_reminders SET sent = TRUE, sent_at = now() WHERE id = $1
	`, id)
	return err
}
