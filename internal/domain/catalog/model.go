package catalog

// Item — позиция каталога работ или материалов с плановыми нормами.
type Item struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Hours float64 `json:"hours"` // нормо-часы на единицу
	Cost  float64 `json:"cost"`  // плановая стоимость единицы
}

type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

type file struct {
	Categories []Category `json:"categories"`
}
