package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

/*** Мастер создания заявки ***/

func (b *Bot) startRequestWizard(ctx context.Context, chatID int64) {
	kb := navKeyboard(false, true)
	b.sendStep(ctx, chatID, "Коротко назовите проблему (тема заявки):", &kb, dialog.StateReqTitle, dialog.Payload{})
}

func (b *Bot) handleRequestWizardText(ctx context.Context, chatID int64, u *users.User, st *dialog.Item, text string) {
	text = strings.TrimSpace(text)
	p := st.Payload

	switch st.State {
	case dialog.StateReqTitle:
		if len([]rune(text)) < 3 {
			b.send(tgbotapi.NewMessage(chatID, "Слишком коротко, опишите тему подробнее."))
			return
		}
		p["title"] = text
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID, "Опишите проблему подробнее (или «-», чтобы пропустить):", &kb, dialog.StateReqDescription, p)

	case dialog.StateReqDescription:
		if text != "-" {
			p["description"] = text
		}
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID, "Укажите объект (название здания/площадки):", &kb, dialog.StateReqObject, p)

	case dialog.StateReqObject:
		if text == "" {
			b.send(tgbotapi.NewMessage(chatID, "Название объекта не может быть пустым."))
			return
		}
		p["object"] = text
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID, "Адрес объекта (или «-», чтобы пропустить):", &kb, dialog.StateReqAddress, p)

	case dialog.StateReqAddress:
		if text != "-" {
			p["address"] = text
		}
		b.clearPrevStep(ctx, chatID)
		kb := skipKeyboard("req:skipdef")
		b.sendStep(ctx, chatID, "Тип дефекта (например «Протечка», «Электрика»):", &kb, dialog.StateReqDefect, p)

	case dialog.StateReqDefect:
		p["defect"] = text
		b.clearPrevStep(ctx, chatID)
		kb := skipKeyboard("req:skipcon")
		b.sendStep(ctx, chatID, "Договор обслуживания (название, если есть):", &kb, dialog.StateReqContract, p)

	case dialog.StateReqContract:
		p["contract"] = text
		b.clearPrevStep(ctx, chatID)
		b.askInspectionDate(ctx, chatID, p, "create")

	case dialog.StateReqInspTime:
		hour, minute, err := parseClock(text)
		if err != nil {
			b.send(tgbotapi.NewMessage(chatID, err.Error()))
			return
		}
		dateStr, _ := dialog.GetString(p, "insp_date")
		day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			b.send(tgbotapi.NewMessage(chatID, "Дата осмотра потерялась, начните заново."))
			_ = b.states.Reset(ctx, chatID)
			return
		}
		inspAt := atDate(day, hour, minute)
		p["insp_at"] = inspAt.Format(time.RFC3339)
		b.clearPrevStep(ctx, chatID)

		mode, _ := dialog.GetString(p, "mode")
		if mode == "assign" {
			b.finishAssignEngineer(ctx, chatID, u, p, &inspAt)
			return
		}
		b.showRequestSummary(ctx, chatID, p)
	}
}

func (b *Bot) askInspectionDate(ctx context.Context, chatID int64, p dialog.Payload, mode string) {
	p["mode"] = mode
	kb := calendarKeyboard("insp", time.Now())
	// «Пропустить» уместен и при создании, и при назначении инженера
	kb.InlineKeyboard = append([][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Без осмотра", "req:skipinsp"),
		),
	}, kb.InlineKeyboard...)
	b.sendStep(ctx, chatID, "Выберите дату осмотра:", &kb, dialog.StateReqInspDate, p)
}

// handleCalendar — навигация и выбор даты во всех календарях.
func (b *Bot) handleCalendar(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	parts := strings.Split(cb.Data, ":") // cal:<scope>:<op>:<value>
	if len(parts) != 4 {
		b.answerCallback(cb, "", false)
		return
	}
	scope, op, value := parts[1], parts[2], parts[3]
	b.answerCallback(cb, "", false)

	if op == "nav" {
		month, err := time.ParseInLocation("2006-01", value, time.Local)
		if err != nil {
			return
		}
		kb := calendarKeyboard(scope, month)
		b.send(tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, kb))
		return
	}

	st, _ := b.states.Get(ctx, chatID)
	p := st.Payload

	switch scope {
	case "insp":
		p["insp_date"] = value
		b.editTextAndClear(chatID, cb.Message.MessageID, "Дата осмотра: "+value)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID, "Время осмотра (ЧЧ:ММ):", &kb, dialog.StateReqInspTime, p)

	case "repfrom", "repto":
		b.handleReportDate(ctx, cb, scope, value, p)
	}
}

func (b *Bot) showRequestSummary(ctx context.Context, chatID int64, p dialog.Payload) {
	title, _ := dialog.GetString(p, "title")
	object, _ := dialog.GetString(p, "object")
	desc, _ := dialog.GetString(p, "description")
	defect, _ := dialog.GetString(p, "defect")
	contract, _ := dialog.GetString(p, "contract")

	var sb strings.Builder
	sb.WriteString("Проверьте заявку:\n")
	fmt.Fprintf(&sb, "Тема: %s\n", title)
	if desc != "" {
		fmt.Fprintf(&sb, "Описание: %s\n", desc)
	}
	fmt.Fprintf(&sb, "Объект: %s\n", object)
	if defect != "" {
		fmt.Fprintf(&sb, "Тип дефекта: %s\n", defect)
	}
	if contract != "" {
		fmt.Fprintf(&sb, "Договор: %s\n", contract)
	}
	if inspStr, ok := dialog.GetString(p, "insp_at"); ok {
		if t, err := time.Parse(time.RFC3339, inspStr); err == nil {
			fmt.Fprintf(&sb, "Осмотр: %s\n", t.Format("02.01.2006 15:04"))
		}
	} else {
		sb.WriteString("Осмотр: не назначен\n")
	}

	kb := confirmRequestKeyboard()
	b.sendStep(ctx, chatID, sb.String(), &kb, dialog.StateReqConfirm, p)
}

func (b *Bot) submitRequest(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	st, _ := b.states.Get(ctx, chatID)
	p := st.Payload

	title, _ := dialog.GetString(p, "title")
	object, _ := dialog.GetString(p, "object")
	desc, _ := dialog.GetString(p, "description")
	address, _ := dialog.GetString(p, "address")
	defect, _ := dialog.GetString(p, "defect")
	contract, _ := dialog.GetString(p, "contract")

	in := requests.CreateInput{
		Title:         title,
		Description:   desc,
		ObjectName:    object,
		ObjectAddress: address,
		DefectType:    defect,
		ContractName:  contract,
	}
	if u.Role == users.RoleClient {
		in.ClientID = &u.ID
		// заявки заказчика ведёт дежурный специалист; пока ведущий — автор
		in.SpecialistID = u.ID
	} else {
		in.SpecialistID = u.ID
	}
	if inspStr, ok := dialog.GetString(p, "insp_at"); ok {
		if t, err := time.Parse(time.RFC3339, inspStr); err == nil {
			in.InspectionAt = &t
		}
	}

	r, err := b.service.Create(ctx, in)
	if err != nil {
		b.answerCallback(cb, "", false)
		b.editTextAndClear(chatID, cb.Message.MessageID, userMessage(err))
		b.log.Error("создание заявки", "err", err)
		return
	}
	b.answerCallback(cb, "Заявка создана", false)
	_ = b.states.Reset(ctx, chatID)
	b.editTextAndClear(chatID, cb.Message.MessageID,
		fmt.Sprintf("✅ Заявка %s создана. Статус: %s.", r.Number, r.Status.Title()))
}

/*** Действия специалиста по заявке ***/

func (b *Bot) handleRequestCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if u == nil || u.Status != users.StatusApproved {
		b.answerCallback(cb, "Доступ запрещён", true)
		return
	}

	switch {
	case data == "req:send":
		b.submitRequest(ctx, cb, u)

	case data == "req:skipdef":
		b.answerCallback(cb, "", false)
		st, _ := b.states.Get(ctx, chatID)
		b.clearPrevStep(ctx, chatID)
		kb := skipKeyboard("req:skipcon")
		b.sendStep(ctx, chatID, "Договор обслуживания (название, если есть):", &kb, dialog.StateReqContract, st.Payload)

	case data == "req:skipcon":
		b.answerCallback(cb, "", false)
		st, _ := b.states.Get(ctx, chatID)
		b.clearPrevStep(ctx, chatID)
		b.askInspectionDate(ctx, chatID, st.Payload, "create")

	case data == "req:skipinsp":
		b.answerCallback(cb, "", false)
		st, _ := b.states.Get(ctx, chatID)
		b.clearPrevStep(ctx, chatID)
		mode, _ := dialog.GetString(st.Payload, "mode")
		if mode == "assign" {
			b.finishAssignEngineer(ctx, chatID, u, st.Payload, nil)
			return
		}
		delete(st.Payload, "insp_at")
		b.showRequestSummary(ctx, chatID, st.Payload)

	case strings.HasPrefix(data, "req:view:"):
		b.answerCallback(cb, "", false)
		if id, ok := parseCallbackID(data, "req:view:"); ok {
			b.showRequestCard(ctx, chatID, u, id)
		}

	case strings.HasPrefix(data, "req:history:"):
		b.answerCallback(cb, "", false)
		if id, ok := parseCallbackID(data, "req:history:"); ok {
			history, err := b.reqRepo.ListHistory(ctx, id)
			if err != nil {
				b.send(tgbotapi.NewMessage(chatID, "Не удалось получить историю."))
				return
			}
			b.send(tgbotapi.NewMessage(chatID, formatHistory(history)))
		}

	case strings.HasPrefix(data, "req:asgeng:"):
		if u.Role != users.RoleSpecialist {
			b.answerCallback(cb, "Доступно только специалисту", true)
			return
		}
		b.answerCallback(cb, "", false)
		if id, ok := parseCallbackID(data, "req:asgeng:"); ok {
			b.pickAssignee(ctx, chatID, id, users.RoleEngineer, "eng")
		}

	case strings.HasPrefix(data, "req:asgmst:"):
		if u.Role != users.RoleSpecialist {
			b.answerCallback(cb, "Доступно только специалисту", true)
			return
		}
		b.answerCallback(cb, "", false)
		if id, ok := parseCallbackID(data, "req:asgmst:"); ok {
			b.pickAssignee(ctx, chatID, id, users.RoleMaster, "mst")
		}

	case strings.HasPrefix(data, "req:ready:"):
		if u.Role != users.RoleSpecialist {
			b.answerCallback(cb, "Доступно только специалисту", true)
			return
		}
		id, ok := parseCallbackID(data, "req:ready:")
		if !ok {
			return
		}
		if err := b.service.MarkReadyForSign(ctx, id, u.ID); err != nil {
			b.answerCallback(cb, "", false)
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			return
		}
		b.answerCallback(cb, "Передана на подписание", false)
		b.showRequestCard(ctx, chatID, u, id)

	case strings.HasPrefix(data, "req:close:"):
		if u.Role != users.RoleSpecialist {
			b.answerCallback(cb, "Доступно только специалисту", true)
			return
		}
		id, ok := parseCallbackID(data, "req:close:")
		if !ok {
			return
		}
		if err := b.service.Close(ctx, id, u.ID, ""); err != nil {
			b.answerCallback(cb, "", false)
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			return
		}
		b.answerCallback(cb, "Заявка закрыта", false)
		b.showRequestCard(ctx, chatID, u, id)

	case strings.HasPrefix(data, "req:cancel:"):
		if u.Role != users.RoleSpecialist {
			b.answerCallback(cb, "Доступно только специалисту", true)
			return
		}
		id, ok := parseCallbackID(data, "req:cancel:")
		if !ok {
			return
		}
		if err := b.service.Cancel(ctx, id, u.ID, "отменена специалистом"); err != nil {
			b.answerCallback(cb, "", false)
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			return
		}
		b.answerCallback(cb, "Заявка отменена", false)
		b.showRequestCard(ctx, chatID, u, id)

	default:
		b.answerCallback(cb, "", false)
	}
}

func (b *Bot) pickAssignee(ctx context.Context, chatID, requestID int64, role users.Role, action string) {
	list, err := b.users.ListApprovedByRole(ctx, role)
	if err != nil || len(list) == 0 {
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Нет подтверждённых пользователей с ролью «%s».", role.Title())))
		return
	}
	m := tgbotapi.NewMessage(chatID, "Выберите исполнителя:")
	m.ReplyMarkup = userPickKeyboard(list, action, requestID)
	b.send(m)
}

// handleAssignPick — выбран инженер (eng:<reqID>:<userID>) или мастер (mst:...).
func (b *Bot) handleAssignPick(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if u == nil || u.Role != users.RoleSpecialist {
		b.answerCallback(cb, "Доступно только специалисту", true)
		return
	}

	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		b.answerCallback(cb, "", false)
		return
	}
	requestID, err1 := strconv.ParseInt(parts[1], 10, 64)
	assigneeID, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		b.answerCallback(cb, "", false)
		return
	}

	if parts[0] == "mst" {
		if err := b.service.AssignMaster(ctx, requestID, assigneeID, u.ID); err != nil {
			b.answerCallback(cb, "", false)
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			return
		}
		b.answerCallback(cb, "Мастер назначен", false)
		b.editTextAndClear(chatID, cb.Message.MessageID, "Мастер назначен.")
		b.showRequestCard(ctx, chatID, u, requestID)
		return
	}

	// инженер: дальше спрашиваем дату осмотра
	b.answerCallback(cb, "", false)
	b.editTextAndClear(chatID, cb.Message.MessageID, "Инженер выбран.")
	p := dialog.Payload{
		"request_id":  float64(requestID),
		"engineer_id": float64(assigneeID),
	}
	b.askInspectionDate(ctx, chatID, p, "assign")
}

func (b *Bot) finishAssignEngineer(ctx context.Context, chatID int64, u *users.User, p dialog.Payload, inspAt *time.Time) {
	requestID, _ := dialog.GetInt64(p, "request_id")
	engineerID, _ := dialog.GetInt64(p, "engineer_id")

	if err := b.service.AssignEngineer(ctx, requestID, engineerID, u.ID, inspAt, ""); err != nil {
		b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
		_ = b.states.Reset(ctx, chatID)
		return
	}
	_ = b.states.Reset(ctx, chatID)
	msg := "Инженер назначен."
	if inspAt != nil {
		msg = fmt.Sprintf("Инженер назначен, осмотр %s.", inspAt.Format("02.01.2006 15:04"))
	}
	b.send(tgbotapi.NewMessage(chatID, msg))
	b.showRequestCard(ctx, chatID, u, requestID)
}
