package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "categories": [
    {
      "name": "Сантехника",
      "items": [
        {"id": "w-1", "name": "Замена смесителя", "unit": "шт", "hours": 1.5, "cost": 1800},
        {"id": "w-2", "name": "Прочистка канализации", "unit": "м", "hours": 0.5, "cost": 700}
      ]
    },
    {
      "name": "Электрика",
      "items": [
        {"id": "w-3", "name": "Замена автомата", "unit": "шт", "hours": 1, "cost": 1200}
      ]
    }
  ]
}`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"Сантехника", "Электрика"}, c.Categories())
	assert.Len(t, c.Items("Сантехника"), 2)
	assert.Empty(t, c.Items("нет такого раздела"))

	it, ok := c.Item("w-1")
	require.True(t, ok)
	assert.Equal(t, "Замена смесителя", it.Name)
	assert.Equal(t, 1.5, it.Hours)

	_, ok = c.Item("w-99")
	assert.False(t, ok)
}

func TestParseDuplicateID(t *testing.T) {
	_, err := Parse([]byte(`{"categories":[{"name":"А","items":[
		{"id":"x","name":"Раз"},{"id":"x","name":"Два"}]}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "дубликат")
}

func TestParseItemWithoutID(t *testing.T) {
	_, err := Parse([]byte(`{"categories":[{"name":"А","items":[{"name":"Без id"}]}]}`))
	require.Error(t, err)
}

func TestParseBadJSON(t *testing.T) {
	_, err := Parse([]byte(`{`))
	require.Error(t, err)
}
