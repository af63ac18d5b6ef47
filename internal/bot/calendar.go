package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// calendarKeyboard — inline-календарь на месяц.
// Колбэки: cal:<scope>:pick:<2006-01-02>, cal:<scope>:nav:<2006-01>, cal:ignore.
func calendarKeyboard(scope string, month time.Time) tgbotapi.InlineKeyboardMarkup {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())

	var rows [][]tgbotapi.InlineKeyboardButton

	title := fmt.Sprintf("%s %d", monthNames[first.Month()-1], first.Year())
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("«", fmt.Sprintf("cal:%s:nav:%s", scope, first.AddDate(0, -1, 0).Format("2006-01"))),
		tgbotapi.NewInlineKeyboardButtonData(title, "cal:ignore"),
		tgbotapi.NewInlineKeyboardButtonData("»", fmt.Sprintf("cal:%s:nav:%s", scope, first.AddDate(0, 1, 0).Format("2006-01"))),
	))

	week := []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}
	hdr := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, d := range week {
		hdr = append(hdr, tgbotapi.NewInlineKeyboardButtonData(d, "cal:ignore"))
	}
	rows = append(rows, hdr)

	// понедельник = 0
	offset := (int(first.Weekday()) + 6) % 7
	daysIn := first.AddDate(0, 1, -1).Day()

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "cal:ignore"))
	}
	for day := 1; day <= daysIn; day++ {
		date := time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, first.Location())
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d", day),
			fmt.Sprintf("cal:%s:pick:%s", scope, date.Format("2006-01-02")),
		))
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "cal:ignore"))
		}
		rows = append(rows, row)
	}

	rows = append(rows, navKeyboard(false, true).InlineKeyboard[0])
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
