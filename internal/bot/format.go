package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bezzego/request-bot/internal/domain/requests"
)

func formatRequestCard(r *requests.Request, items []requests.WorkItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📌 Заявка %s\n%s\n", r.Number, r.Title)
	if r.Description != "" {
		fmt.Fprintf(&sb, "%s\n", r.Description)
	}
	fmt.Fprintf(&sb, "\nСтатус: %s\n", r.Status.Title())
	if r.InspectionAt != nil {
		fmt.Fprintf(&sb, "Осмотр: %s\n", r.InspectionAt.Format("02.01.2006 15:04"))
	}
	if r.DueAt != nil {
		fmt.Fprintf(&sb, "Срок устранения: %s\n", r.DueAt.Format("02.01.2006"))
	}
	if r.PlannedBudget > 0 || r.ActualBudget > 0 {
		fmt.Fprintf(&sb, "Бюджет: план %.2f ₽, факт %.2f ₽\n", r.PlannedBudget, r.ActualBudget)
	}
	if r.PlannedHours > 0 || r.ActualHours > 0 {
		fmt.Fprintf(&sb, "Часы: план %.1f, факт %.1f\n", r.PlannedHours, r.ActualHours)
	}
	if r.InspectionNotes != "" {
		fmt.Fprintf(&sb, "Замечания осмотра: %s\n", r.InspectionNotes)
	}
	if r.CompletionNotes != "" {
		fmt.Fprintf(&sb, "Примечание: %s\n", r.CompletionNotes)
	}
	if len(items) > 0 {
		sb.WriteString("\nСмета:\n")
		for _, it := range items {
			sb.WriteString("  " + formatWorkItem(it) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatWorkItem(it requests.WorkItem) string {
	line := fmt.Sprintf("• %s — %.1f %s, план %.2f ₽", it.Name, it.PlannedQty, it.Unit, it.PlannedCost)
	if it.ActualCost != nil {
		line += fmt.Sprintf(", факт %.2f ₽", *it.ActualCost)
	}
	return line
}

func formatHistory(history []requests.StageHistory) string {
	if len(history) == 0 {
		return "История пуста."
	}
	var sb strings.Builder
	sb.WriteString("🕓 История заявки:\n")
	for _, h := range history {
		from := "—"
		if h.FromStatus != nil {
			from = h.FromStatus.Title()
		}
		fmt.Fprintf(&sb, "%s: %s → %s", h.CreatedAt.Format("02.01 15:04"), from, h.ToStatus.Title())
		if h.Comment != "" {
			fmt.Fprintf(&sb, " (%s)", h.Comment)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseClock разбирает время вида «14:30».
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ожидается время в формате ЧЧ:ММ")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("часы вне диапазона 0–23")
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("минуты вне диапазона 0–59")
	}
	return hour, minute, nil
}

// parseAmount разбирает число, допуская запятую как разделитель.
func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("ожидается неотрицательное число")
	}
	return v, nil
}

func atDate(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}
