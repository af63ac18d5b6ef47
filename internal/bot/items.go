package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/catalog"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

/*** Смета: каталог работ и материалов ***/

func (b *Bot) catalogFor(kind string) *catalog.Catalog {
	if kind == "material" {
		return b.materials
	}
	return b.works
}

func (b *Bot) handleItemsCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, u *users.User) {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if u == nil || u.Status != users.StatusApproved ||
		(u.Role != users.RoleSpecialist && u.Role != users.RoleMaster) {
		b.answerCallback(cb, "Доступно специалисту и мастеру", true)
		return
	}

	switch {
	case strings.HasPrefix(data, "items:open:"):
		b.answerCallback(cb, "", false)
		if id, ok := parseCallbackID(data, "items:open:"); ok {
			b.showItemsMenu(ctx, chatID, id)
		}

	case strings.HasPrefix(data, "items:addw:"), strings.HasPrefix(data, "items:addm:"):
		b.answerCallback(cb, "", false)
		kind := "work"
		prefix := "items:addw:"
		if strings.HasPrefix(data, "items:addm:") {
			kind = "material"
			prefix = "items:addm:"
		}
		id, ok := parseCallbackID(data, prefix)
		if !ok {
			return
		}
		p := dialog.Payload{"request_id": float64(id), "kind": kind}
		b.showCategoryPick(ctx, chatID, p)

	case strings.HasPrefix(data, "items:cat:"):
		b.answerCallback(cb, "", false)
		idx, err := strconv.Atoi(strings.TrimPrefix(data, "items:cat:"))
		if err != nil {
			return
		}
		st, _ := b.states.Get(ctx, chatID)
		kind, _ := dialog.GetString(st.Payload, "kind")
		cats := b.catalogFor(kind).Categories()
		if idx < 0 || idx >= len(cats) {
			return
		}
		st.Payload["cat"] = cats[idx]
		b.clearPrevStep(ctx, chatID)
		b.showItemPick(ctx, chatID, st.Payload)

	case strings.HasPrefix(data, "items:it:"):
		b.answerCallback(cb, "", false)
		itemID := strings.TrimPrefix(data, "items:it:")
		st, _ := b.states.Get(ctx, chatID)
		kind, _ := dialog.GetString(st.Payload, "kind")
		it, ok := b.catalogFor(kind).Item(itemID)
		if !ok {
			b.send(tgbotapi.NewMessage(chatID, "Позиция каталога не найдена."))
			return
		}
		st.Payload["item_id"] = it.ID
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID,
			fmt.Sprintf("«%s». Укажите количество (%s):", it.Name, it.Unit),
			&kb, dialog.StateItemsQty, st.Payload)

	case strings.HasPrefix(data, "items:fact:"):
		b.answerCallback(cb, "", false)
		id, ok := parseCallbackID(data, "items:fact:")
		if !ok {
			return
		}
		items, err := b.reqRepo.ListWorkItems(ctx, id)
		if err != nil || len(items) == 0 {
			b.send(tgbotapi.NewMessage(chatID, "Смета пуста."))
			return
		}
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items)+1)
		for _, it := range items {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(it.Name, fmt.Sprintf("items:act:%d", it.ID)),
			))
		}
		rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
		p := dialog.Payload{"request_id": float64(id)}
		kb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
		b.sendStep(ctx, chatID, "По какой позиции вносим факт?", &kb, dialog.StateItemsPick, p)

	case strings.HasPrefix(data, "items:act:"):
		b.answerCallback(cb, "", false)
		itemID, ok := parseCallbackID(data, "items:act:")
		if !ok {
			return
		}
		st, _ := b.states.Get(ctx, chatID)
		requestID, _ := dialog.GetInt64(st.Payload, "request_id")
		items, err := b.reqRepo.ListWorkItems(ctx, requestID)
		if err != nil {
			b.send(tgbotapi.NewMessage(chatID, "Не удалось получить смету."))
			return
		}
		for _, it := range items {
			if it.ID == itemID {
				st.Payload["item_name"] = it.Name
				break
			}
		}
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID,
			"Введите фактическую стоимость, при необходимости через пробел часы (например «1500» или «1500 3,5»):",
			&kb, dialog.StateItemsActual, st.Payload)

	default:
		b.answerCallback(cb, "", false)
	}
}

func (b *Bot) showItemsMenu(ctx context.Context, chatID, requestID int64) {
	r, err := b.reqRepo.GetByID(ctx, requestID)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
		return
	}
	items, _ := b.reqRepo.ListWorkItems(ctx, requestID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Смета по заявке %s\n", r.Number)
	if len(items) == 0 {
		sb.WriteString("Пока пусто.\n")
	} else {
		for _, it := range items {
			sb.WriteString(formatWorkItem(it) + "\n")
		}
	}
	fmt.Fprintf(&sb, "\nПлан: %.2f ₽ / %.1f ч. Факт: %.2f ₽ / %.1f ч.",
		r.PlannedBudget, r.PlannedHours, r.ActualBudget, r.ActualHours)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Работа", fmt.Sprintf("items:addw:%d", requestID)),
			tgbotapi.NewInlineKeyboardButtonData("➕ Материал", fmt.Sprintf("items:addm:%d", requestID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Внести факт", fmt.Sprintf("items:fact:%d", requestID)),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
	m := tgbotapi.NewMessage(chatID, sb.String())
	m.ReplyMarkup = kb
	b.send(m)
}

func (b *Bot) showCategoryPick(ctx context.Context, chatID int64, p dialog.Payload) {
	kind, _ := dialog.GetString(p, "kind")
	cats := b.catalogFor(kind).Categories()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(cats)+1)
	for i, name := range cats {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, fmt.Sprintf("items:cat:%d", i)),
		))
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	kb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	b.sendStep(ctx, chatID, "Выберите раздел каталога:", &kb, dialog.StateItemsCategory, p)
}

func (b *Bot) showItemPick(ctx context.Context, chatID int64, p dialog.Payload) {
	kind, _ := dialog.GetString(p, "kind")
	cat, _ := dialog.GetString(p, "cat")
	items := b.catalogFor(kind).Items(cat)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items)+1)
	for _, it := range items {
		label := fmt.Sprintf("%s (%.0f ₽/%s)", it.Name, it.Cost, it.Unit)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "items:it:"+it.ID),
		))
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	kb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	b.sendStep(ctx, chatID, "Выберите позицию:", &kb, dialog.StateItemsPick, p)
}

func (b *Bot) handleItemsText(ctx context.Context, chatID int64, u *users.User, st *dialog.Item, text string) {
	p := st.Payload

	switch st.State {
	case dialog.StateItemsQty:
		qty, err := parseAmount(text)
		if err != nil || qty == 0 {
			b.send(tgbotapi.NewMessage(chatID, "Ожидается количество больше нуля."))
			return
		}
		p["qty"] = qty
		kind, _ := dialog.GetString(p, "kind")
		itemID, _ := dialog.GetString(p, "item_id")
		it, _ := b.catalogFor(kind).Item(itemID)
		b.clearPrevStep(ctx, chatID)
		kb := navKeyboard(false, true)
		b.sendStep(ctx, chatID,
			fmt.Sprintf("Стоимость за единицу (по каталогу %.2f ₽, «-» — принять):", it.Cost),
			&kb, dialog.StateItemsCost, p)

	case dialog.StateItemsCost:
		kind, _ := dialog.GetString(p, "kind")
		itemID, _ := dialog.GetString(p, "item_id")
		it, ok := b.catalogFor(kind).Item(itemID)
		if !ok {
			b.send(tgbotapi.NewMessage(chatID, "Позиция каталога потерялась, начните заново."))
			_ = b.states.Reset(ctx, chatID)
			return
		}
		unitCost := it.Cost
		if strings.TrimSpace(text) != "-" {
			v, err := parseAmount(text)
			if err != nil {
				b.send(tgbotapi.NewMessage(chatID, err.Error()))
				return
			}
			unitCost = v
		}
		qty, _ := dialog.GetFloat(p, "qty")
		requestID, _ := dialog.GetInt64(p, "request_id")

		category, _ := dialog.GetString(p, "cat")
		in := requests.WorkItemInput{
			Name:         it.Name,
			Category:     category,
			Kind:         requests.WorkItemKind(kind),
			Unit:         it.Unit,
			PlannedQty:   qty,
			PlannedHours: it.Hours * qty,
		}
		if in.Kind == requests.WorkItemMaterial {
			in.MaterialCost = unitCost * qty
		} else {
			in.PlannedCost = unitCost * qty
		}

		b.clearPrevStep(ctx, chatID)
		if _, err := b.service.AddWorkItem(ctx, requestID, u.ID, in); err != nil {
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			_ = b.states.Reset(ctx, chatID)
			return
		}
		_ = b.states.Reset(ctx, chatID)
		b.send(tgbotapi.NewMessage(chatID, "Позиция добавлена в смету."))
		b.showItemsMenu(ctx, chatID, requestID)

	case dialog.StateItemsActual:
		requestID, _ := dialog.GetInt64(p, "request_id")
		name, _ := dialog.GetString(p, "item_name")
		fields := strings.Fields(text)
		if len(fields) == 0 {
			b.send(tgbotapi.NewMessage(chatID, "Введите фактическую стоимость."))
			return
		}
		cost, err := parseAmount(fields[0])
		if err != nil {
			b.send(tgbotapi.NewMessage(chatID, err.Error()))
			return
		}
		in := requests.ActualInput{Cost: &cost}
		if len(fields) > 1 {
			hours, err := parseAmount(fields[1])
			if err != nil {
				b.send(tgbotapi.NewMessage(chatID, "Часы: "+err.Error()))
				return
			}
			in.Hours = &hours
		}

		b.clearPrevStep(ctx, chatID)
		if err := b.service.UpdateWorkItemActual(ctx, requestID, u.ID, name, in); err != nil {
			b.send(tgbotapi.NewMessage(chatID, userMessage(err)))
			_ = b.states.Reset(ctx, chatID)
			return
		}
		_ = b.states.Reset(ctx, chatID)
		b.send(tgbotapi.NewMessage(chatID, "Факт сохранён."))
		b.showItemsMenu(ctx, chatID, requestID)
	}
}
