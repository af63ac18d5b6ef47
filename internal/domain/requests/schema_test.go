package requests

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Нуллабельность колонок в миграции обязана совпадать с указательными
// полями моделей: вставка nil-указателя в NOT NULL колонку падает в
// Postgres, а хранилище в памяти такого ограничения не знает.
func TestMigrationNullabilityMatchesModels(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "00001_init.sql"))
	require.NoError(t, err)
	sql := string(raw)

	const workItemColumns = `
		id, request_id, name, category, kind, unit,
		planned_qty, actual_qty, planned_hours, actual_hours,
		planned_cost, actual_cost, material_cost, notes, created_at, updated_at`

	assertNullability(t, columnDefs(t, sql, "requests"), requestColumns, Request{})
	assertNullability(t, columnDefs(t, sql, "work_items"), workItemColumns, WorkItem{})
	assertNullability(t, columnDefs(t, sql, "work_sessions"), sessionColumns, WorkSession{})
}

// columnDefs — определения колонок таблицы из текста миграции.
func columnDefs(t *testing.T, sql, table string) map[string]string {
	t.Helper()
	marker := "CREATE TABLE " + table + " ("
	start := strings.Index(sql, marker)
	require.GreaterOrEqual(t, start, 0, "таблица %s не найдена в миграции", table)
	body := sql[start+len(marker):]
	end := strings.Index(body, ");")
	require.GreaterOrEqual(t, end, 0)

	defs := map[string]string{}
	for _, line := range strings.Split(body[:end], "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		defs[strings.Fields(line)[0]] = line
	}
	return defs
}

// assertNullability сверяет колонки (в порядке скана) с полями модели:
// указательное поле — колонка без NOT NULL, значение — с NOT NULL.
func assertNullability(t *testing.T, defs map[string]string, columns string, model any) {
	t.Helper()
	var cols []string
	for _, c := range strings.Split(columns, ",") {
		cols = append(cols, strings.TrimSpace(c))
	}
	typ := reflect.TypeOf(model)
	require.Equal(t, typ.NumField(), len(cols), "%s: колонки и поля расходятся", typ.Name())

	for i, col := range cols {
		def, ok := defs[col]
		require.True(t, ok, "%s: колонка %s отсутствует в миграции", typ.Name(), col)

		notNull := strings.Contains(def, "NOT NULL") || strings.Contains(def, "PRIMARY KEY")
		field := typ.Field(i)
		if field.Type.Kind() == reflect.Pointer {
			assert.False(t, notNull, "%s.%s: колонка %s должна допускать NULL", typ.Name(), field.Name, col)
		} else {
			assert.True(t, notNull, "%s.%s: колонка %s должна быть NOT NULL", typ.Name(), field.Name, col)
		}
	}
}
