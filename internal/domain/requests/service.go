package requests

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bezzego/request-bot/internal/infra/metrics"
)

// DefaultRemedyTermDays — срок устранения по умолчанию, если не задан
// ни в конфиге, ни в заявке.
const DefaultRemedyTermDays = 14

// Service — ядро жизненного цикла заявки: переходы статусов, пересчёт
// сметы, журнал стадий и постановка напоминаний. Каждый публичный метод
// выполняется в одной транзакции.
type Service struct {
	tx             TxManager
	log            *slog.Logger
	validate       *validator.Validate
	remedyTermDays int
	now            func() time.Time
}

func NewService(tx TxManager, log *slog.Logger, remedyTermDays int) *Service {
	if remedyTermDays <= 0 {
		remedyTermDays = DefaultRemedyTermDays
	}
	return &Service{
		tx:             tx,
		log:            log,
		validate:       validator.New(),
		remedyTermDays: remedyTermDays,
		now:            time.Now,
	}
}

type CreateInput struct {
	Title         string `validate:"required,min=3,max=200"`
	Description   string `validate:"max=2000"`
	ObjectName    string `validate:"required,max=200"`
	ObjectAddress string
	ContractName  string
	DefectType    string

	ClientID     *int64
	SpecialistID int64 `validate:"required"`

	InspectionAt   *time.Time
	RemedyTermDays int `validate:"omitempty,gte=1,lte=365"`
}

// Create создаёт заявку: справочники find-or-create, номер из дневной
// последовательности, первая запись журнала (from=nil), напоминания об
// осмотре и сроке — когда известны их моменты срабатывания.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("валидация заявки: %w", err)
	}

	term := in.RemedyTermDays
	if term <= 0 {
		term = s.remedyTermDays
	}

	var req *Request
	err := s.tx.WithinTx(ctx, func(st Store) error {
		obj, err := st.FindOrCreateObject(ctx, in.ObjectName, in.ObjectAddress)
		if err != nil {
			return fmt.Errorf("объект: %w", err)
		}

		r := &Request{
			Title:          in.Title,
			Description:    in.Description,
			Status:         StatusNew,
			ClientID:       in.ClientID,
			SpecialistID:   &in.SpecialistID,
			ObjectID:       obj.ID,
			RemedyTermDays: term,
			InspectionAt:   in.InspectionAt,
			CreatedAt:      s.now(),
		}

		if in.ContractName != "" {
			c, err := st.FindOrCreateContract(ctx, in.ContractName)
			if err != nil {
				return fmt.Errorf("договор: %w", err)
			}
			r.ContractID = &c.ID
		}
		if in.DefectType != "" {
			d, err := st.FindOrCreateDefectType(ctx, in.DefectType)
			if err != nil {
				return fmt.Errorf("тип дефекта: %w", err)
			}
			r.DefectTypeID = &d.ID
		}

		if in.InspectionAt != nil {
			r.Status = StatusInspectionScheduled
			due := in.InspectionAt.AddDate(0, 0, term)
			r.DueAt = &due
		}

		num, err := st.NextRequestNumber(ctx, s.now())
		if err != nil {
			return fmt.Errorf("номер заявки: %w", err)
		}
		r.Number = num

		if err := st.InsertRequest(ctx, r); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, st, r, nil, in.SpecialistID, "Заявка создана"); err != nil {
			return err
		}

		if r.InspectionAt != nil {
			if err := s.schedule(ctx, st, r, ReminderInspection, *r.InspectionAt, s.inspectionRecipients(r), false); err != nil {
				return err
			}
		}
		if r.DueAt != nil {
			if err := s.schedule(ctx, st, r, ReminderDeadline, *r.DueAt, s.deadlineRecipients(r), false); err != nil {
				return err
			}
		}

		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RequestTransitions.WithLabelValues(string(req.Status)).Inc()
	s.log.Info("заявка создана", "number", req.Number, "status", req.Status)
	return req, nil
}

// AssignEngineer назначает инженера. Если передано новое время осмотра,
// заявка переводится в «осмотр назначен», а прежнее напоминание об
// осмотре заменяется новым. Без времени статус не меняется.
func (s *Service) AssignEngineer(ctx context.Context, requestID, engineerID, actorID int64, inspectionAt *time.Time, location string) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		r.EngineerID = &engineerID

		if inspectionAt == nil {
			if err := st.UpdateRequest(ctx, r); err != nil {
				return err
			}
			return s.appendInfo(ctx, st, r, actorID, "Назначен инженер")
		}

		from := r.Status
		if err := transition(r, StatusInspectionScheduled); err != nil {
			return err
		}
		r.InspectionAt = inspectionAt
		if r.DueAt == nil {
			due := inspectionAt.AddDate(0, 0, s.term(r))
			r.DueAt = &due
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		comment := "Назначен инженер, осмотр " + inspectionAt.Format("02.01.2006 15:04")
		if location != "" {
			comment += ", место: " + location
		}
		if err := s.appendHistory(ctx, st, r, &from, actorID, comment); err != nil {
			return err
		}
		return s.schedule(ctx, st, r, ReminderInspection, *inspectionAt, s.inspectionRecipients(r), true)
	})
	if err != nil {
		return err
	}
	if inspectionAt != nil {
		metrics.RequestTransitions.WithLabelValues(string(StatusInspectionScheduled)).Inc()
	}
	return nil
}

// RecordInspection фиксирует результат осмотра. Допустим только из статуса
// «осмотр назначен» — незапланированный осмотр отклоняется ошибкой перехода.
func (s *Service) RecordInspection(ctx context.Context, requestID, engineerID int64, notes string, completedAt *time.Time) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := transition(r, StatusInspected); err != nil {
			return err
		}
		at := s.now()
		if completedAt != nil {
			at = *completedAt
		}
		r.EngineerID = &engineerID
		r.InspectedAt = &at
		r.InspectionNotes = notes
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		return s.appendHistory(ctx, st, r, &from, engineerID, "Осмотр выполнен")
	})
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusInspected)).Inc()
	return nil
}

// AssignMaster назначает мастера. Срок устранения, если ещё не задан,
// считается от текущего момента; существующий срок не переписывается.
// Напоминание о сроке заменяется, дополнительно ставится напоминание
// о просрочке на следующий день после срока.
func (s *Service) AssignMaster(ctx context.Context, requestID, masterID, assignedBy int64) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := transition(r, StatusAssigned); err != nil {
			return err
		}
		now := s.now()
		r.MasterID = &masterID
		r.MasterAssignedAt = &now
		if r.DueAt == nil {
			due := now.AddDate(0, 0, s.term(r))
			r.DueAt = &due
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, st, r, &from, assignedBy, "Назначен мастер"); err != nil {
			return err
		}

		if err := s.schedule(ctx, st, r, ReminderDeadline, *r.DueAt, s.deadlineRecipients(r), true); err != nil {
			return err
		}
		return s.schedule(ctx, st, r, ReminderOverdue, r.DueAt.AddDate(0, 0, 1), s.deadlineRecipients(r), true)
	})
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusAssigned)).Inc()
	return nil
}

type StartWorkInput struct {
	Lat       *float64
	Lon       *float64
	Address   string
	StartedAt *time.Time
}

// StartWork открывает смену мастера. Вторая открытая смена того же мастера
// по той же заявке отклоняется (частичный уникальный индекс в схеме страхует
// от гонки между двумя обработчиками).
func (s *Service) StartWork(ctx context.Context, requestID, masterID int64, in StartWorkInput) (*WorkSession, error) {
	var session *WorkSession
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		open, err := st.OpenSession(ctx, requestID, masterID)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrSessionAlreadyOpen
		}

		from := r.Status
		if err := transition(r, StatusInProgress); err != nil {
			return err
		}
		startedAt := s.now()
		if in.StartedAt != nil {
			startedAt = *in.StartedAt
		}
		if r.WorkStartedAt == nil {
			r.WorkStartedAt = &startedAt
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}

		ws := &WorkSession{
			RequestID:    requestID,
			MasterID:     masterID,
			StartedAt:    startedAt,
			StartLat:     in.Lat,
			StartLon:     in.Lon,
			StartAddress: in.Address,
		}
		if err := st.InsertWorkSession(ctx, ws); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, st, r, &from, masterID, "Работы начаты"); err != nil {
			return err
		}
		session = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusInProgress)).Inc()
	return session, nil
}

type FinishWorkInput struct {
	SessionID       *int64
	Lat             *float64
	Lon             *float64
	Address         string
	FinishedAt      *time.Time
	HoursReported   *float64
	CompletionNotes string
}

// FinishWork закрывает смену (по id или последнюю открытую данного мастера),
// считает часы по стене, переводит заявку в «работы завершены» и
// пересчитывает фактические часы заявки по всем сменам.
func (s *Service) FinishWork(ctx context.Context, requestID, masterID int64, in FinishWorkInput) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}

		var ws *WorkSession
		if in.SessionID != nil {
			ws, err = st.SessionByID(ctx, *in.SessionID)
			if err != nil {
				return err
			}
			// чужую или закрытую смену по id закрыть нельзя
			if ws != nil && (ws.RequestID != requestID || ws.MasterID != masterID || !ws.Open()) {
				ws = nil
			}
		} else {
			ws, err = st.OpenSession(ctx, requestID, masterID)
			if err != nil {
				return err
			}
		}
		if ws == nil {
			return ErrNoActiveSession
		}

		from := r.Status
		if err := transition(r, StatusCompleted); err != nil {
			return err
		}

		finishedAt := s.now()
		if in.FinishedAt != nil {
			finishedAt = *in.FinishedAt
		}
		calc := finishedAt.Sub(ws.StartedAt).Hours()
		if calc < 0 {
			calc = 0
		}
		ws.FinishedAt = &finishedAt
		ws.FinishLat = in.Lat
		ws.FinishLon = in.Lon
		ws.FinishAddress = in.Address
		ws.HoursReported = in.HoursReported
		ws.HoursCalculated = &calc
		if err := st.UpdateWorkSession(ctx, ws); err != nil {
			return err
		}

		hours, err := st.SumSessionHours(ctx, requestID)
		if err != nil {
			return err
		}
		r.ActualHours = hours
		r.WorkCompletedAt = &finishedAt
		if in.CompletionNotes != "" {
			r.CompletionNotes = in.CompletionNotes
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		return s.appendHistory(ctx, st, r, &from, masterID, "Работы завершены")
	})
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusCompleted)).Inc()
	return nil
}

// MarkReadyForSign переводит заявку к подписанию документов и ставит
// напоминание через 4 часа.
func (s *Service) MarkReadyForSign(ctx context.Context, requestID, userID int64) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := transition(r, StatusReadyForSign); err != nil {
			return err
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, st, r, &from, userID, "Передана на подписание"); err != nil {
			return err
		}
		return s.schedule(ctx, st, r, ReminderDocSign, s.now().Add(4*time.Hour), s.signRecipients(r), true)
	})
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusReadyForSign)).Inc()
	return nil
}

func (s *Service) Close(ctx context.Context, requestID, managerID int64, comment string) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := transition(r, StatusClosed); err != nil {
			return err
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		msg := "Заявка закрыта"
		if comment != "" {
			msg += ": " + comment
		}
		return s.appendHistory(ctx, st, r, &from, managerID, msg)
	})
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusClosed)).Inc()
	return nil
}

// Cancel отменяет заявку из любого нетерминального статуса; причина
// сохраняется в примечании к завершению.
func (s *Service) Cancel(ctx context.Context, requestID, cancelledBy int64, reason string) error {
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := transition(r, StatusCancelled); err != nil {
			return err
		}
		if reason != "" {
			r.CompletionNotes = reason
		}
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		msg := "Заявка отменена"
		if reason != "" {
			msg += ": " + reason
		}
		return s.appendHistory(ctx, st, r, &from, cancelledBy, msg)
	})
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(StatusCancelled)).Inc()
	return nil
}

type WorkItemInput struct {
	Name         string `validate:"required,max=200"`
	Category     string
	Kind         WorkItemKind `validate:"required,oneof=work material"`
	Unit         string
	PlannedQty   float64 `validate:"gte=0"`
	PlannedHours float64 `validate:"gte=0"`
	PlannedCost  float64 `validate:"gte=0"`
	MaterialCost float64 `validate:"gte=0"`
	Notes        string
}

// AddWorkItem добавляет строку сметы и пересчитывает агрегаты заявки.
// В журнал пишется информационная запись без смены статуса.
func (s *Service) AddWorkItem(ctx context.Context, requestID, actorID int64, in WorkItemInput) (*WorkItem, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("валидация позиции сметы: %w", err)
	}
	var item *WorkItem
	err := s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		it := &WorkItem{
			RequestID:    requestID,
			Name:         in.Name,
			Category:     in.Category,
			Kind:         in.Kind,
			Unit:         in.Unit,
			PlannedQty:   in.PlannedQty,
			PlannedHours: in.PlannedHours,
			PlannedCost:  in.PlannedCost,
			MaterialCost: in.MaterialCost,
			Notes:        in.Notes,
			CreatedAt:    s.now(),
		}
		if err := st.InsertWorkItem(ctx, it); err != nil {
			return err
		}
		if err := s.recalcBudget(ctx, st, r); err != nil {
			return err
		}
		item = it
		return s.appendInfo(ctx, st, r, actorID, "Смета дополнена: "+in.Name)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

type ActualInput struct {
	Qty   *float64
	Hours *float64
	Cost  *float64
	Notes string
}

// UpdateWorkItemActual проставляет факт по строке сметы (поиск по имени)
// и пересчитывает агрегаты заявки.
func (s *Service) UpdateWorkItemActual(ctx context.Context, requestID, actorID int64, name string, in ActualInput) error {
	return s.tx.WithinTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		it, err := st.WorkItemByName(ctx, requestID, name)
		if err != nil {
			return err
		}
		if it == nil {
			return ErrWorkItemNotFound
		}
		if in.Qty != nil {
			it.ActualQty = in.Qty
		}
		if in.Hours != nil {
			it.ActualHours = in.Hours
		}
		if in.Cost != nil {
			it.ActualCost = in.Cost
		}
		if in.Notes != "" {
			it.Notes = in.Notes
		}
		if err := st.UpdateWorkItem(ctx, it); err != nil {
			return err
		}
		if err := s.recalcBudget(ctx, st, r); err != nil {
			return err
		}
		return s.appendInfo(ctx, st, r, actorID, "Факт по смете: "+name)
	})
}

// recalcBudget — полный пересчёт агрегатов заявки суммой по строкам сметы.
// Всегда пере-агрегация, не инкремент: дрейфа от округлений не накапливается.
func (s *Service) recalcBudget(ctx context.Context, st Store, r *Request) error {
	t, err := st.SumWorkItems(ctx, r.ID)
	if err != nil {
		return err
	}
	r.PlannedBudget = t.PlannedBudget
	r.ActualBudget = t.ActualBudget
	r.PlannedHours = t.PlannedHours
	r.ActualHours = t.ActualHours
	return st.UpdateRequest(ctx, r)
}

// schedule ставит напоминание; при replace сперва снимает неотправленные
// напоминания того же типа, чтобы они не дублировались.
func (s *Service) schedule(ctx context.Context, st Store, r *Request, typ ReminderType, at time.Time, recipients []int64, replace bool) error {
	if len(recipients) == 0 {
		return ErrNoRecipient
	}
	if replace {
		if _, err := st.DeletePendingReminders(ctx, r.ID, typ); err != nil {
			return err
		}
	}
	rem := &Reminder{
		RequestID:    r.ID,
		Type:         typ,
		ScheduledAt:  at,
		RecipientIDs: recipients,
		Payload:      r.Number,
	}
	if err := st.InsertReminder(ctx, rem); err != nil {
		return err
	}
	metrics.RemindersScheduled.WithLabelValues(string(typ)).Inc()
	return nil
}

func (s *Service) appendHistory(ctx context.Context, st Store, r *Request, from *Status, actorID int64, comment string) error {
	return st.AppendHistory(ctx, &StageHistory{
		RequestID:  r.ID,
		FromStatus: from,
		ToStatus:   r.Status,
		ActorID:    actorID,
		Comment:    comment,
		CreatedAt:  s.now(),
	})
}

// appendInfo — запись журнала без смены статуса (from == to).
func (s *Service) appendInfo(ctx context.Context, st Store, r *Request, actorID int64, comment string) error {
	cur := r.Status
	return s.appendHistory(ctx, st, r, &cur, actorID, comment)
}

func (s *Service) term(r *Request) int {
	if r.RemedyTermDays > 0 {
		return r.RemedyTermDays
	}
	return s.remedyTermDays
}

func (s *Service) inspectionRecipients(r *Request) []int64 {
	var ids []int64
	if r.EngineerID != nil {
		ids = append(ids, *r.EngineerID)
	}
	if r.SpecialistID != nil {
		ids = append(ids, *r.SpecialistID)
	}
	return ids
}

func (s *Service) deadlineRecipients(r *Request) []int64 {
	var ids []int64
	if r.MasterID != nil {
		ids = append(ids, *r.MasterID)
	}
	if r.SpecialistID != nil {
		ids = append(ids, *r.SpecialistID)
	}
	return ids
}

func (s *Service) signRecipients(r *Request) []int64 {
	var ids []int64
	if r.SpecialistID != nil {
		ids = append(ids, *r.SpecialistID)
	}
	if r.ClientID != nil {
		ids = append(ids, *r.ClientID)
	}
	return ids
}
