package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/reports"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

/*** Отчёт по заявкам (специалист) ***/

func (b *Bot) startReportWizard(ctx context.Context, chatID int64) {
	kb := calendarKeyboard("repfrom", time.Now())
	b.sendStep(ctx, chatID, "Отчёт по заявкам. Выберите начало периода:", &kb, dialog.StateReportFrom, dialog.Payload{})
}

func (b *Bot) handleReportDate(ctx context.Context, cb *tgbotapi.CallbackQuery, scope, value string, p dialog.Payload) {
	chatID := cb.Message.Chat.ID

	if scope == "repfrom" {
		p["from"] = value
		b.editTextAndClear(chatID, cb.Message.MessageID, "Начало периода: "+value)
		kb := calendarKeyboard("repto", time.Now())
		b.sendStep(ctx, chatID, "Выберите конец периода:", &kb, dialog.StateReportTo, p)
		return
	}

	p["to"] = value
	b.editTextAndClear(chatID, cb.Message.MessageID, "Конец периода: "+value)

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Все статусы", "rep:status:all"),
		),
	}
	for _, st := range []requests.Status{
		requests.StatusInProgress, requests.StatusCompleted,
		requests.StatusClosed, requests.StatusCancelled,
	} {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(st.Title(), "rep:status:"+string(st)),
		))
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	kb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	b.sendStep(ctx, chatID, "Фильтр по статусу:", &kb, dialog.StateReportTo, p)
}

func (b *Bot) handleReportCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if u == nil || u.Role != users.RoleSpecialist || u.Status != users.StatusApproved {
		b.answerCallback(cb, "Доступно только специалисту", true)
		return
	}
	if !strings.HasPrefix(data, "rep:status:") {
		b.answerCallback(cb, "", false)
		return
	}
	b.answerCallback(cb, "", false)

	st, _ := b.states.Get(ctx, chatID)
	if st == nil {
		b.editTextAndClear(chatID, cb.Message.MessageID, "Период потерялся, начните заново.")
		return
	}
	fromStr, _ := dialog.GetString(st.Payload, "from")
	toStr, _ := dialog.GetString(st.Payload, "to")
	from, err1 := time.ParseInLocation("2006-01-02", fromStr, time.Local)
	to, err2 := time.ParseInLocation("2006-01-02", toStr, time.Local)
	if err1 != nil || err2 != nil {
		b.editTextAndClear(chatID, cb.Message.MessageID, "Период потерялся, начните заново.")
		_ = b.states.Reset(ctx, chatID)
		return
	}

	f := reports.Filter{From: from, To: to.AddDate(0, 0, 1)} // конец включительно
	if status := strings.TrimPrefix(data, "rep:status:"); status != "all" {
		f.Status = status
	}

	rows, err := b.reports.Requests(ctx, f)
	if err != nil {
		b.editTextAndClear(chatID, cb.Message.MessageID, "Не удалось собрать отчёт.")
		b.log.Error("отчёт по заявкам", "err", err)
		_ = b.states.Reset(ctx, chatID)
		return
	}
	if len(rows) == 0 {
		b.editTextAndClear(chatID, cb.Message.MessageID, "За выбранный период заявок нет.")
		_ = b.states.Reset(ctx, chatID)
		return
	}

	buf, err := reports.BuildWorkbook(rows)
	if err != nil {
		b.editTextAndClear(chatID, cb.Message.MessageID, "Ошибка формирования файла.")
		b.log.Error("формирование отчёта", "err", err)
		_ = b.states.Reset(ctx, chatID)
		return
	}

	b.editTextAndClear(chatID, cb.Message.MessageID,
		fmt.Sprintf("Отчёт: %s — %s, заявок: %d.", from.Format("02.01.2006"), to.Format("02.01.2006"), len(rows)))

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("requests_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102")),
		Bytes: buf.Bytes(),
	})
	b.send(doc)
	_ = b.states.Reset(ctx, chatID)
}
