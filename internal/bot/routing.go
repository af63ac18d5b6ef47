package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	u, _ := b.users.GetByTelegramID(ctx, msg.From.ID)

	// геопозиция обрабатывается отдельно от текста
	if msg.Location != nil {
		b.handleLocation(ctx, chatID, u, msg)
		return
	}

	if u != nil && u.Status == users.StatusApproved {
		if b.handleMenuButton(ctx, chatID, u, msg.Text) {
			return
		}
	}

	b.handleStateText(ctx, chatID, u, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	switch msg.Command() {
	case "start":
		existing, _ := b.users.GetByTelegramID(ctx, tgID)
		defaultRole := users.RoleClient
		if existing != nil && existing.Role != "" {
			defaultRole = existing.Role
		}
		tg := users.Telegram{
			ID:        tgID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
		}
		u, err := b.users.UpsertFromTelegram(ctx, tg, defaultRole)
		if err != nil {
			b.send(tgbotapi.NewMessage(chatID, "Ошибка: не удалось сохранить профиль"))
			return
		}

		if u.Status == users.StatusApproved {
			m := tgbotapi.NewMessage(chatID, fmt.Sprintf("С возвращением! Ваша роль: %s.", u.Role.Title()))
			m.ReplyMarkup = replyKeyboardFor(u.Role)
			b.send(m)
			return
		}

		_ = b.states.Set(ctx, chatID, dialog.StateAwaitFIO, dialog.Payload{})
		b.askFIO(chatID)
		return

	case "help":
		b.send(tgbotapi.NewMessage(chatID,
			"Команды:\n/start — регистрация и главное меню\n/help — помощь\n\nДействия доступны через кнопки снизу."))
		return

	default:
		b.send(tgbotapi.NewMessage(chatID, "Не знаю такую команду. Наберите /help"))
		return
	}
}

// handleMenuButton — нижняя клавиатура. true, если текст распознан как кнопка.
func (b *Bot) handleMenuButton(ctx context.Context, chatID int64, u *users.User, text string) bool {
	switch text {
	case "Новая заявка":
		if u.Role != users.RoleClient && u.Role != users.RoleSpecialist {
			return false
		}
		b.startRequestWizard(ctx, chatID)
		return true

	case "Мои заявки":
		if u.Role != users.RoleClient {
			return false
		}
		b.showRequestList(ctx, chatID, "client_id", u.ID, "Ваши заявки:")
		return true

	case "Заявки в работе":
		if u.Role != users.RoleSpecialist {
			return false
		}
		b.showRequestList(ctx, chatID, "specialist_id", u.ID, "Заявки в работе:")
		return true

	case "Мои осмотры":
		if u.Role != users.RoleEngineer {
			return false
		}
		b.showRequestList(ctx, chatID, "engineer_id", u.ID, "Заявки на осмотр:")
		return true

	case "Мои работы":
		if u.Role != users.RoleMaster {
			return false
		}
		b.showRequestList(ctx, chatID, "master_id", u.ID, "Назначенные вам заявки:")
		return true

	case "Отчёт по заявкам":
		if u.Role != users.RoleSpecialist {
			return false
		}
		b.startReportWizard(ctx, chatID)
		return true
	}
	return false
}

// handleStateText — ввод текста в рамках мастера диалога.
func (b *Bot) handleStateText(ctx context.Context, chatID int64, u *users.User, msg *tgbotapi.Message) {
	st, err := b.states.Get(ctx, chatID)
	if err != nil || st == nil {
		return
	}

	switch st.State {
	case dialog.StateAwaitFIO:
		b.handleFIO(ctx, chatID, msg)

	case dialog.StateReqTitle, dialog.StateReqDescription, dialog.StateReqObject,
		dialog.StateReqAddress, dialog.StateReqDefect, dialog.StateReqContract,
		dialog.StateReqInspTime:
		b.handleRequestWizardText(ctx, chatID, u, st, msg.Text)

	case dialog.StateInspNotes:
		b.handleInspectionNotes(ctx, chatID, u, st, msg.Text)

	case dialog.StateItemsQty, dialog.StateItemsCost, dialog.StateItemsActual:
		b.handleItemsText(ctx, chatID, u, st, msg.Text)

	case dialog.StateWorkFinishHours, dialog.StateWorkFinishNotes:
		b.handleWorkText(ctx, chatID, u, st, msg.Text)

	case dialog.StateIdle:
		// вне диалога игнорируем свободный текст
	}
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	cb := upd.CallbackQuery
	chatID := cb.Message.Chat.ID
	data := cb.Data

	u, _ := b.users.GetByTelegramID(ctx, cb.From.ID)

	switch {
	case data == "nav:cancel":
		b.answerCallback(cb, "", false)
		_ = b.states.Reset(ctx, chatID)
		b.editTextAndClear(chatID, cb.Message.MessageID, "Действие отменено.")
		if u != nil && u.Status == users.StatusApproved {
			m := tgbotapi.NewMessage(chatID, "Главное меню.")
			m.ReplyMarkup = replyKeyboardFor(u.Role)
			b.send(m)
		}

	case data == "cal:ignore":
		b.answerCallback(cb, "", false)

	case strings.HasPrefix(data, "role:"):
		b.handleRolePick(ctx, cb, strings.TrimPrefix(data, "role:"))

	case strings.HasPrefix(data, "approve:"), strings.HasPrefix(data, "reject:"):
		b.handleApproval(ctx, cb, data)

	case strings.HasPrefix(data, "cal:"):
		b.handleCalendar(ctx, cb, u)

	case strings.HasPrefix(data, "req:"):
		b.handleRequestCallback(ctx, cb, u)

	case strings.HasPrefix(data, "eng:"), strings.HasPrefix(data, "mst:"):
		b.handleAssignPick(ctx, cb, u)

	case strings.HasPrefix(data, "insp:"):
		b.handleInspectionCallback(ctx, cb, u)

	case strings.HasPrefix(data, "items:"):
		b.handleItemsCallback(ctx, cb, u)

	case strings.HasPrefix(data, "work:"):
		b.handleWorkCallback(ctx, cb, u)

	case strings.HasPrefix(data, "rep:"):
		b.handleReportCallback(ctx, cb, u)

	default:
		b.answerCallback(cb, "", false)
	}
}

/*** Регистрация ***/

func (b *Bot) askFIO(chatID int64) {
	kb := navKeyboard(false, true)
	m := tgbotapi.NewMessage(chatID, "Введите, пожалуйста, ФИО одной строкой.")
	m.ReplyMarkup = kb
	b.send(m)
}

func (b *Bot) handleFIO(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	fio := strings.TrimSpace(msg.Text)
	if len([]rune(fio)) < 5 {
		b.send(tgbotapi.NewMessage(chatID, "Слишком короткое ФИО, попробуйте ещё раз."))
		return
	}
	_ = b.users.SetFullName(ctx, msg.From.ID, fio)
	_ = b.states.Set(ctx, chatID, dialog.StateAwaitRole, dialog.Payload{"fio": fio})
	m := tgbotapi.NewMessage(chatID, "Выберите вашу роль:")
	m.ReplyMarkup = roleKeyboard()
	b.send(m)
}

func (b *Bot) handleRolePick(ctx context.Context, cb *tgbotapi.CallbackQuery, roleStr string) {
	chatID := cb.Message.Chat.ID
	role := users.Role(roleStr)
	switch role {
	case users.RoleClient, users.RoleSpecialist, users.RoleEngineer, users.RoleMaster:
	default:
		b.answerCallback(cb, "Неизвестная роль", true)
		return
	}
	b.answerCallback(cb, "", false)

	u, err := b.users.GetByTelegramID(ctx, cb.From.ID)
	if err != nil || u == nil {
		b.editTextAndClear(chatID, cb.Message.MessageID, "Профиль не найден, наберите /start.")
		return
	}

	// заказчик подтверждается сразу; остальные роли — через админа
	if role == users.RoleClient {
		if _, err := b.users.Approve(ctx, cb.From.ID, role); err != nil {
			b.editTextAndClear(chatID, cb.Message.MessageID, "Не удалось сохранить роль.")
			return
		}
		_ = b.states.Reset(ctx, chatID)
		b.editTextAndClear(chatID, cb.Message.MessageID, "Готово! Вы зарегистрированы как заказчик.")
		m := tgbotapi.NewMessage(chatID, "Можно создавать заявки.")
		m.ReplyMarkup = clientReplyKeyboard()
		b.send(m)
		return
	}

	_ = b.states.Reset(ctx, chatID)
	b.editTextAndClear(chatID, cb.Message.MessageID,
		fmt.Sprintf("Запрос на роль «%s» отправлен администратору. Ожидайте подтверждения.", role.Title()))

	if b.adminChat != 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", fmt.Sprintf("approve:%d:%s", cb.From.ID, role)),
				tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", fmt.Sprintf("reject:%d", cb.From.ID)),
			),
		)
		m := tgbotapi.NewMessage(b.adminChat,
			fmt.Sprintf("Заявка на роль:\n%s (@%s)\nРоль: %s", u.FullName, u.Username, role.Title()))
		m.ReplyMarkup = kb
		b.send(m)
	}
}

func (b *Bot) handleApproval(ctx context.Context, cb *tgbotapi.CallbackQuery, data string) {
	if cb.Message.Chat.ID != b.adminChat {
		b.answerCallback(cb, "Доступ запрещён", true)
		return
	}
	b.answerCallback(cb, "", false)

	if strings.HasPrefix(data, "approve:") {
		parts := strings.Split(strings.TrimPrefix(data, "approve:"), ":")
		if len(parts) != 2 {
			return
		}
		tgID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return
		}
		role := users.Role(parts[1])
		u, err := b.users.Approve(ctx, tgID, role)
		if err != nil {
			b.editTextAndClear(cb.Message.Chat.ID, cb.Message.MessageID, "Не удалось подтвердить пользователя.")
			return
		}
		b.editTextAndClear(cb.Message.Chat.ID, cb.Message.MessageID,
			fmt.Sprintf("Подтверждено: %s — %s.", u.FullName, role.Title()))
		m := tgbotapi.NewMessage(tgID, fmt.Sprintf("Ваша роль «%s» подтверждена.", role.Title()))
		m.ReplyMarkup = replyKeyboardFor(role)
		b.send(m)
		return
	}

	tgID, err := strconv.ParseInt(strings.TrimPrefix(data, "reject:"), 10, 64)
	if err != nil {
		return
	}
	_ = b.users.Reject(ctx, tgID)
	b.editTextAndClear(cb.Message.Chat.ID, cb.Message.MessageID, "Отклонено.")
	b.send(tgbotapi.NewMessage(tgID, "К сожалению, запрос на роль отклонён."))
}

/*** Общие куски ***/

func (b *Bot) showRequestList(ctx context.Context, chatID int64, column string, userID int64, title string) {
	list, err := b.reqRepo.ListActiveFor(ctx, column, userID, 20)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Не удалось получить список заявок."))
		return
	}
	if len(list) == 0 {
		b.send(tgbotapi.NewMessage(chatID, "Активных заявок нет."))
		return
	}
	m := tgbotapi.NewMessage(chatID, title)
	m.ReplyMarkup = requestListKeyboard(list, "req:view")
	b.send(m)
}

func (b *Bot) showRequestCard(ctx context.Context, chatID int64, u *users.User, requestID int64) {
	r, err := b.reqRepo.GetByID(ctx, requestID)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
		return
	}
	items, _ := b.reqRepo.ListWorkItems(ctx, requestID)
	m := tgbotapi.NewMessage(chatID, formatRequestCard(r, items))
	if u != nil {
		m.ReplyMarkup = requestCardKeyboard(r, u.Role)
	}
	b.send(m)
}

// userMessage переводит доменные ошибки в сообщение пользователю.
func userMessage(err error) string {
	var tr *requests.InvalidTransitionError
	switch {
	case errors.As(err, &tr):
		return fmt.Sprintf("Действие недоступно: заявка в статусе «%s».", tr.From.Title())
	case errors.Is(err, requests.ErrNotFound):
		return "Заявка не найдена."
	case errors.Is(err, requests.ErrNoActiveSession):
		return "Нет открытой смены по этой заявке."
	case errors.Is(err, requests.ErrSessionAlreadyOpen):
		return "По этой заявке уже есть открытая смена."
	case errors.Is(err, requests.ErrWorkItemNotFound):
		return "Позиция сметы не найдена."
	case errors.Is(err, requests.ErrNoRecipient):
		return "Не удалось определить получателей напоминания."
	default:
		return "Что-то пошло не так, попробуйте позже."
	}
}

func parseCallbackID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
