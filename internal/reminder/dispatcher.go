package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/infra/metrics"
)

// Sender отправляет текст в Telegram-чат. Реализуется ботом.
type Sender interface {
	SendText(chatID int64, text string) error
}

// Store — выборка и отметка напоминаний.
type Store interface {
	DueReminders(ctx context.Context, now time.Time, limit int) ([]requests.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*requests.Request, error)
}

// Recipients резолвит внутренние id пользователей в chat id Telegram.
type Recipients interface {
	TelegramIDsByUserIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// Dispatcher — фоновая доставка напоминаний: опрос таблицы по таймеру,
// рассылка получателям, отметка sent. Ядро только пишет строки
// напоминаний; доставка целиком здесь.
type Dispatcher struct {
	store      Store
	recipients Recipients
	sender     Sender
	log        *slog.Logger
	interval   time.Duration
	batch      int
	now        func() time.Time
}

func New(store Store, recipients Recipients, sender Sender, log *slog.Logger, interval time.Duration, batch int) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	return &Dispatcher{
		store:      store,
		recipients: recipients,
		sender:     sender,
		log:        log,
		interval:   interval,
		batch:      batch,
		now:        time.Now,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			d.dispatchOnce(ctx)
		}
	}
}

// dispatchOnce обрабатывает одну пачку. Ошибка доставки одному получателю
// не блокирует остальных; напоминание отмечается отправленным, если ушло
// хотя бы одному.
func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	due, err := d.store.DueReminders(ctx, d.now(), d.batch)
	if err != nil {
		d.log.Error("выборка напоминаний", "err", err)
		return
	}
	for _, rem := range due {
		req, err := d.store.GetByID(ctx, rem.RequestID)
		if err != nil {
			d.log.Error("заявка для напоминания", "reminder_id", rem.ID, "err", err)
			continue
		}
		chats, err := d.recipients.TelegramIDsByUserIDs(ctx, rem.RecipientIDs)
		if err != nil {
			d.log.Error("получатели напоминания", "reminder_id", rem.ID, "err", err)
			continue
		}
		delivered := 0
		text := Text(rem, req)
		for _, chatID := range chats {
			if err := d.sender.SendText(chatID, text); err != nil {
				d.log.Error("доставка напоминания", "chat_id", chatID, "err", err)
				continue
			}
			delivered++
		}
		if delivered == 0 {
			d.log.Warn("напоминание никому не доставлено", "reminder_id", rem.ID)
			continue
		}
		if err := d.store.MarkReminderSent(ctx, rem.ID); err != nil {
			d.log.Error("отметка напоминания", "reminder_id", rem.ID, "err", err)
			continue
		}
		metrics.RemindersSent.WithLabelValues(string(rem.Type)).Inc()
	}
}

// Text — текст напоминания по типу.
func Text(rem requests.Reminder, req *requests.Request) string {
	switch rem.Type {
	case requests.ReminderInspection:
		when := ""
		if req.InspectionAt != nil {
			when = " " + req.InspectionAt.Format("02.01.2006 15:04")
		}
		return fmt.Sprintf("🔎 Напоминание: осмотр по заявке %s%s.", req.Number, when)
	case requests.ReminderDeadline:
		return fmt.Sprintf("⏰ Срок устранения по заявке %s истекает сегодня.", req.Number)
	case requests.ReminderOverdue:
		return fmt.Sprintf("❗ Заявка %s просрочена. Требуется внимание.", req.Number)
	case requests.ReminderDocSign:
		return fmt.Sprintf("✍️ Заявка %s готова к подписанию документов.", req.Number)
	case requests.ReminderReport:
		return fmt.Sprintf("📄 По заявке %s ожидается отчёт.", req.Number)
	}
	return fmt.Sprintf("Напоминание по заявке %s.", req.Number)
}
