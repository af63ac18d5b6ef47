package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Catalog — неизменяемый справочник работ или материалов. Строится один раз
// при старте процесса и передаётся по ссылке; ленивых глобалов нет.
type Catalog struct {
	categories []Category
	byID       map[string]Item
	byCategory map[string][]Item
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор каталога: %w", err)
	}
	c := &Catalog{
		categories: f.Categories,
		byID:       make(map[string]Item),
		byCategory: make(map[string][]Item),
	}
	for _, cat := range f.Categories {
		for _, it := range cat.Items {
			if it.ID == "" || it.Name == "" {
				return nil, fmt.Errorf("каталог: позиция без id или name в разделе %q", cat.Name)
			}
			if _, dup := c.byID[it.ID]; dup {
				return nil, fmt.Errorf("каталог: дубликат id %q", it.ID)
			}
			c.byID[it.ID] = it
		}
		c.byCategory[cat.Name] = cat.Items
	}
	return c, nil
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога %s: %w", path, err)
	}
	return Parse(data)
}

// Categories возвращает разделы в порядке файла.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.Name)
	}
	return out
}

func (c *Catalog) Items(category string) []Item {
	return c.byCategory[category]
}

func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

func (c *Catalog) Len() int { return len(c.byID) }
