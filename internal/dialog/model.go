package dialog

type State string

const (
	// Регистрация
	StateIdle         State = "idle"
	StateAwaitFIO     State = "await_fio"
	StateAwaitRole    State = "await_role"
	StateAwaitConfirm State = "await_confirm"

	// Создание заявки (заказчик/специалист)
	StateReqTitle       State = "req_title"
	StateReqDescription State = "req_description"
	StateReqObject      State = "req_object"       // ввод названия объекта
	StateReqAddress     State = "req_address"      // адрес объекта (для нового)
	StateReqDefect      State = "req_defect"       // тип дефекта
	StateReqContract    State = "req_contract"     // договор (можно пропустить)
	StateReqInspDate    State = "req_insp_date"    // календарь осмотра
	StateReqInspTime    State = "req_insp_time"    // время осмотра (ЧЧ:ММ)
	StateReqConfirm     State = "req_confirm"      // сводка и отправка

	// Осмотр (инженер)
	StateInspPick    State = "insp_pick"    // выбор заявки
	StateInspNotes   State = "insp_notes"   // замечания по осмотру
	StateInspConfirm State = "insp_confirm"

	// Смета по каталогу работ/материалов
	StateItemsMenu     State = "items_menu"     // карточка сметы заявки
	StateItemsCategory State = "items_category" // выбор раздела каталога
	StateItemsPick     State = "items_pick"     // выбор позиции
	StateItemsQty      State = "items_qty"      // плановое количество
	StateItemsCost     State = "items_cost"     // плановая стоимость (можно взять из каталога)
	StateItemsActual   State = "items_actual"   // ввод факта по позиции

	// Смены мастера
	StateWorkPick        State = "work_pick"         // выбор заявки мастера
	StateWorkStartGeo    State = "work_start_geo"    // геопозиция при старте (опционально)
	StateWorkFinishHours State = "work_finish_hours" // отработанные часы
	StateWorkFinishNotes State = "work_finish_notes" // примечание к завершению

	// Отчёт (специалист)
	StateReportFrom State = "report_from" // календарь: начало периода
	StateReportTo   State = "report_to"   // календарь: конец периода
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
