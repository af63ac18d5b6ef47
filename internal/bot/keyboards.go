package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
)

func roleKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Заказчик", "role:client"),
			tgbotapi.NewInlineKeyboardButtonData("Специалист", "role:specialist"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Инженер", "role:engineer"),
			tgbotapi.NewInlineKeyboardButtonData("Мастер", "role:master"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
}

func navKeyboard(back bool, cancel bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{}
	if back {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "nav:back"))
	}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Отменить", "nav:cancel"))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func skipKeyboard(action string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Пропустить", action),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
}

func confirmRequestKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 Отправить", "req:send"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
}

// Нижние панели по ролям.

func clientReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton("Новая заявка")},
			{tgbotapi.NewKeyboardButton("Мои заявки")},
		},
	}
}

func specialistReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton("Новая заявка"), tgbotapi.NewKeyboardButton("Заявки в работе")},
			{tgbotapi.NewKeyboardButton("Отчёт по заявкам")},
		},
	}
}

func engineerReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton("Мои осмотры")},
		},
	}
}

func masterReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton("Мои работы")},
		},
	}
}

func replyKeyboardFor(role users.Role) tgbotapi.ReplyKeyboardMarkup {
	switch role {
	case users.RoleSpecialist:
		return specialistReplyKeyboard()
	case users.RoleEngineer:
		return engineerReplyKeyboard()
	case users.RoleMaster:
		return masterReplyKeyboard()
	default:
		return clientReplyKeyboard()
	}
}

// requestListKeyboard — по кнопке на заявку.
func requestListKeyboard(list []requests.Request, action string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list)+1)
	for _, r := range list {
		label := fmt.Sprintf("%s · %s", r.Number, r.Status.Title())
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%d", action, r.ID)),
		))
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// userPickKeyboard — выбор исполнителя из списка пользователей роли.
func userPickKeyboard(list []users.User, action string, requestID int64) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list)+1)
	for _, u := range list {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(u.FullName, fmt.Sprintf("%s:%d:%d", action, requestID, u.ID)),
		))
	}
	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// requestCardKeyboard — действия по заявке в зависимости от роли и статуса.
func requestCardKeyboard(r *requests.Request, role users.Role) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	id := r.ID

	if role == users.RoleSpecialist && !r.Status.Terminal() {
		switch r.Status {
		case requests.StatusNew, requests.StatusInspectionScheduled:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👷 Назначить инженера", fmt.Sprintf("req:asgeng:%d", id)),
			))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔧 Назначить мастера", fmt.Sprintf("req:asgmst:%d", id)),
			))
		case requests.StatusInspected:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔧 Назначить мастера", fmt.Sprintf("req:asgmst:%d", id)),
			))
		case requests.StatusCompleted:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✍️ На подписание", fmt.Sprintf("req:ready:%d", id)),
			))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Закрыть", fmt.Sprintf("req:close:%d", id)),
			))
		case requests.StatusReadyForSign:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Закрыть", fmt.Sprintf("req:close:%d", id)),
			))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Смета", fmt.Sprintf("items:open:%d", id)),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Отменить заявку", fmt.Sprintf("req:cancel:%d", id)),
		))
	}

	if role == users.RoleEngineer && r.Status == requests.StatusInspectionScheduled {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔎 Осмотр выполнен", fmt.Sprintf("insp:pick:%d", id)),
		))
	}

	if role == users.RoleMaster {
		switch r.Status {
		case requests.StatusAssigned, requests.StatusCompleted:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("▶️ Начать работу", fmt.Sprintf("work:start:%d", id)),
			))
		case requests.StatusInProgress:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⏹ Завершить работу", fmt.Sprintf("work:finish:%d", id)),
			))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Смета", fmt.Sprintf("items:open:%d", id)),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🕓 История", fmt.Sprintf("req:history:%d", id)),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
