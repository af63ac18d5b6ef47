package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

/*** Смены мастера ***/

func (b *Bot) handleWorkCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if u == nil || u.Role != users.RoleMaster || u.Status != users.StatusApproved {
		b.answerCallback(cb, "Доступно только мастеру", true)
		return
	}

	switch {
	case strings.HasPrefix(data, "work:start:"):
		b.answerCallback(cb, "", false)
		id, ok := parseCallbackID(data, "work:start:")
		if !ok {
			return
		}
		p := dialog.Payload{"request_id": float64(id)}
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Начать без геопозиции", "work:startnow"),
			),
			navKeyboard(false, true).InlineKeyboard[0],
		)
		b.sendStep(ctx, chatID,
			"Отправьте геопозицию (скрепка → Геопозиция), чтобы зафиксировать место начала работ, или начните без неё.",
			&kb, dialog.StateWorkStartGeo, p)

	case data == "work:startnow":
		st, _ := b.states.Get(ctx, chatID)
		requestID, _ := dialog.GetInt64(st.Payload, "request_id")
		b.answerCallback(cb, "", false)
		b.startSession(ctx, chatID, u, requestID, requests.StartWorkInput{})

	case strings.HasPrefix(data, "work:finish:"):
		b.answerCallback(cb, "", false)
		id, ok := parseCallbackID(data, "work:finish:")
		if !ok {
			return
		}
		p := dialog.Payload{"request_id": float64(id)}
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID,
			"Сколько часов отработано? Введите число или «-», чтобы посчитать по времени смены.",
			&kb, dialog.StateWorkFinishHours, p)

	default:
		b.answerCallback(cb, "", false)
	}
}

// handleLocation — геопозиция при старте смены.
func (b *Bot) handleLocation(ctx context.Context, chatID int64, u *users.User, msg *tgbotapi.Message) {
	if u == nil || u.Role != users.RoleMaster {
		return
	}
	st, _ := b.states.Get(ctx, chatID)
	if st.State != dialog.StateWorkStartGeo {
		return
	}
	requestID, _ := dialog.GetInt64(st.Payload, "request_id")
	lat := msg.Location.Latitude
	lon := msg.Location.Longitude
	b.clearPrevStep(ctx, chatID)
	b.startSession(ctx, chatID, u, requestID, requests.StartWorkInput{Lat: &lat, Lon: &lon})
}

func (b *Bot) startSession(ctx context.Context, chatID int64, u *users.User, requestID int64, in requests.StartWorkInput) {
	ws, err := b.service.StartWork(ctx, requestID, u.ID, in)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
		_ = b.states.Reset(ctx, chatID)
		return
	}
	_ = b.states.Reset(ctx, chatID)
	b.send(tgbotapi.NewMessage(chatID,
		fmt.Sprintf("▶️ Смена открыта в %s. Не забудьте завершить работу по окончании.", ws.StartedAt.Format("15:04"))))
}

func (b *Bot) handleWorkText(ctx context.Context, chatID int64, u *users.User, st *dialog.Item, text string) {
	text = strings.TrimSpace(text)
	p := st.Payload

	switch st.State {
	case dialog.StateWorkFinishHours:
		if text != "-" {
			hours, err := parseAmount(text)
			if err != nil {
				b.send(tgbotapi.NewMessage(chatID, err.Error()))
				return
			}
			p["hours"] = hours
		}
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID, "Примечание к выполненным работам (или «-»):", &kb, dialog.StateWorkFinishNotes, p)

	case dialog.StateWorkFinishNotes:
		requestID, _ := dialog.GetInt64(p, "request_id")
		in := requests.FinishWorkInput{}
		if hours, ok := dialog.GetFloat(p, "hours"); ok {
			in.HoursReported = &hours
		}
		if text != "-" {
			in.CompletionNotes = text
		}
		b.clearPrevStep(ctx, chatID)
		if err := b.service.FinishWork(ctx, requestID, u.ID, in); err != nil {
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			_ = b.states.Reset(ctx, chatID)
			return
		}
		_ = b.states.Reset(ctx, chatID)
		b.send(tgbotapi.NewMessage(chatID, "⏹ Смена закрыта, работы по заявке завершены."))
	}
}
