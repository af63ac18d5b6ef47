package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// BuildWorkbook формирует Excel-отчёт по заявкам: строка на заявку,
// итоговая строка с суммами бюджета и часов внизу.
func BuildWorkbook(rows []Row) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"Номер",
		"Название",
		"Статус",
		"Объект",
		"Специалист",
		"Мастер",
		"Создана",
		"Срок",
		"Бюджет план",
		"Бюджет факт",
		"Часы план",
		"Часы факт",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("заголовок: %w", err)
	}

	var sumPB, sumAB, sumPH, sumAH float64
	rowN := 2
	for _, r := range rows {
		due := ""
		if r.DueAt != nil {
			due = r.DueAt.Format("02.01.2006")
		}
		excelRow := []interface{}{
			r.Number,
			r.Title,
			r.Status,
			r.ObjectName,
			r.Specialist,
			r.Master,
			r.CreatedAt.Format("02.01.2006"),
			due,
			r.PlannedBudget,
			r.ActualBudget,
			r.PlannedHours,
			r.ActualHours,
		}
		cell, err := excelize.CoordinatesToCellName(1, rowN)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, err
		}
		sumPB += r.PlannedBudget
		sumAB += r.ActualBudget
		sumPH += r.PlannedHours
		sumAH += r.ActualHours
		rowN++
	}

	totals := []interface{}{
		"ИТОГО", "", "", "", "", "", "", "",
		sumPB, sumAB, sumPH, sumAH,
	}
	cell, err := excelize.CoordinatesToCellName(1, rowN)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, cell, &totals); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("запись файла: %w", err)
	}
	return &buf, nil
}
