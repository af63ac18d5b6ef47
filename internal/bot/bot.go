package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/catalog"
	"github.com/bezzego/request-bot/internal/domain/reports"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	adminChat int64

	users   *users.Repo
	states  *dialog.Repo
	reqRepo *requests.Repo
	service *requests.Service
	reports *reports.Repo

	works     *catalog.Catalog
	materials *catalog.Catalog
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, adminChatID int64,
	usersRepo *users.Repo, statesRepo *dialog.Repo,
	reqRepo *requests.Repo, service *requests.Service, reportsRepo *reports.Repo,
	works, materials *catalog.Catalog) *Bot {

	return &Bot{
		api: api, log: log, adminChat: adminChatID,
		users: usersRepo, states: statesRepo,
		reqRepo: reqRepo, service: service, reports: reportsRepo,
		works: works, materials: materials,
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				b.onMessage(ctx, upd)
			} else if upd.CallbackQuery != nil {
				b.onCallback(ctx, upd)
			}
		}
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

// SendText реализует reminder.Sender.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	if _, err := b.api.Request(resp); err != nil {
		b.log.Error("answer callback failed", "err", err)
	}
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

// clearPrevStep убирает inline-кнопки у прошлого шага мастера диалога.
func (b *Bot) clearPrevStep(ctx context.Context, chatID int64) {
	st, _ := b.states.Get(ctx, chatID)
	if st == nil || st.Payload == nil {
		return
	}
	if mid, ok := dialog.GetInt64(st.Payload, "last_mid"); ok {
		rm := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
		b.send(tgbotapi.NewEditMessageReplyMarkup(chatID, int(mid), rm))
	}
}

// saveLastStep сохраняет id бот-сообщения текущего шага в payload.
func (b *Bot) saveLastStep(ctx context.Context, chatID int64, nextState dialog.State, payload dialog.Payload, newMID int) {
	if payload == nil {
		payload = dialog.Payload{}
	}
	payload["last_mid"] = float64(newMID)
	_ = b.states.Set(ctx, chatID, nextState, payload)
}

// sendStep отправляет сообщение шага и запоминает его id.
func (b *Bot) sendStep(ctx context.Context, chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup, nextState dialog.State, payload dialog.Payload) {
	m := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		m.ReplyMarkup = *kb
	}
	sent, err := b.api.Send(m)
	if err != nil {
		b.log.Error("send step failed", "err", err)
		return
	}
	b.saveLastStep(ctx, chatID, nextState, payload, sent.MessageID)
}
