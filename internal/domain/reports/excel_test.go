package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildWorkbook(t *testing.T) {
	due := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	rows := []Row{
		{
			Number: "20260820-001", Title: "Течь стояка", Status: "closed",
			ObjectName: "ЖК Северный", Specialist: "Иванов И.И.", Master: "Петров П.П.",
			CreatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), DueAt: &due,
			PlannedBudget: 5280, ActualBudget: 4300, PlannedHours: 3, ActualHours: 5,
		},
		{
			Number: "20260821-001", Title: "Ремонт щитка", Status: "in_progress",
			ObjectName: "ЖК Северный", Specialist: "Иванов И.И.",
			CreatedAt:     time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC),
			PlannedBudget: 1200, PlannedHours: 1,
		},
	}

	buf, err := BuildWorkbook(rows)
	require.NoError(t, err)
	require.NotZero(t, buf.Len())

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	a1, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Номер", a1)

	a2, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "20260820-001", a2)

	h2, err := f.GetCellValue(sheet, "H2")
	require.NoError(t, err)
	assert.Equal(t, "03.09.2026", h2)

	h3, err := f.GetCellValue(sheet, "H3")
	require.NoError(t, err)
	assert.Empty(t, h3, "без срока ячейка пустая")

	a4, err := f.GetCellValue(sheet, "A4")
	require.NoError(t, err)
	assert.Equal(t, "ИТОГО", a4)

	i4, err := f.GetCellValue(sheet, "I4")
	require.NoError(t, err)
	assert.Equal(t, "6480", i4)
}

func TestBuildWorkbookEmpty(t *testing.T) {
	buf, err := BuildWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	a2, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "ИТОГО", a2, "итоговая строка сразу под заголовком")
}
