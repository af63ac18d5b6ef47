package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/users"
)

/*** Осмотр (инженер) ***/

func (b *Bot) handleInspectionCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if u == nil || u.Role != users.RoleEngineer || u.Status != users.StatusApproved {
		b.answerCallback(cb, "Доступно только инженеру", true)
		return
	}

	switch {
	case strings.HasPrefix(data, "insp:pick:"):
		b.answerCallback(cb, "", false)
		id, ok := parseCallbackID(data, "insp:pick:")
		if !ok {
			return
		}
		p := dialog.Payload{"request_id": float64(id)}
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID, "Опишите результат осмотра (замечания, объём работ):", &kb, dialog.StateInspNotes, p)

	case data == "insp:done":
		st, _ := b.states.Get(ctx, chatID)
		requestID, _ := dialog.GetInt64(st.Payload, "request_id")
		notes, _ := dialog.GetString(st.Payload, "notes")

		if err := b.service.RecordInspection(ctx, requestID, u.ID, notes, nil); err != nil {
			b.answerCallback(cb, "", false)
			b.editTextAndClear(chatID, cb.Message.MessageID, userMessage(err))
			_ = b.states.Reset(ctx, chatID)
			return
		}
		b.answerCallback(cb, "Осмотр зафиксирован", false)
		_ = b.states.Reset(ctx, chatID)
		b.editTextAndClear(chatID, cb.Message.MessageID, "✅ Осмотр выполнен, заявка передана специалисту.")

	default:
		b.answerCallback(cb, "", false)
	}
}

func (b *Bot) handleInspectionNotes(ctx context.Context, chatID int64, u *users.User, st *dialog.Item, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		b.send(tgbotapi.NewMessage(chatID, "Замечания не могут быть пустыми."))
		return
	}
	st.Payload["notes"] = text
	b.clearPrevStep(ctx, chatID)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Зафиксировать осмотр", "insp:done"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
	b.sendStep(ctx, chatID, fmt.Sprintf("Результат осмотра:\n%s\n\nЗафиксировать?", text), &kb, dialog.StateInspConfirm, st.Payload)
}
