// Пакет model — доменные модели Data Module: записи контактов,
// снимки таблиц и координаты.
package model

import (
	"strings"
	"time"
)

// TableKind — логический тип таблицы (один лист в удалённой книге).
type TableKind string

const (
	// TableContacts — лист контактов (person-схема).
	TableContacts TableKind = "contacts"
	// TableCommerciaux — лист коммерческих контактов (commercial-схема).
	TableCommerciaux TableKind = "commerciaux"
)

// ParseTableKind валидирует строковый идентификатор таблицы из URL.
func ParseTableKind(s string) (TableKind, bool) {
	switch TableKind(s) {
	case TableContacts, TableCommerciaux:
		return TableKind(s), true
	}
	return "", false
}

// Field — каноническое имя поля записи. Разрешается в позицию колонки
// через таблицу псевдонимов заголовков (пакет schema).
type Field string

const (
	FieldPseudo    Field = "pseudo"
	FieldPrenom    Field = "prenom"
	FieldNom       Field = "nom"
	FieldSociete   Field = "societe"
	FieldPays      Field = "pays"
	FieldRegion    Field = "region"
	FieldVille     Field = "ville"
	FieldLatitude  Field = "latitude"
	FieldLongitude Field = "longitude"
	FieldNDASignee Field = "ndaSignee"
)

// Coordinates — географические координаты в градусах.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record — одна логическая запись таблицы.
//
// RowIndex — позиция среди строк данных (0-based), стабильная только
// относительно последнего полного чтения. Это НЕ постоянный ключ:
// запись с устаревшим RowIndex после внешней пересортировки таблицы
// молча адресует не ту физическую строку.
type Record struct {
	RowIndex int `json:"rowIndex"`

	Pseudo  string `json:"pseudo"`
	Prenom  string `json:"prenom"`
	Nom     string `json:"nom"`
	Societe string `json:"societe"`
	Pays    string `json:"pays"`
	Region  string `json:"region"`
	Ville   string `json:"ville"`

	// Coords — координаты записи: точные (из колонок latitude/longitude)
	// либо приближённые (результат геокодирования). nil — пока не разрешены.
	Coords *Coordinates `json:"coords,omitempty"`
	// HasExactCoords — true, если обе колонки координат распарсились.
	// Приближённые координаты геокодера флаг не поднимают.
	HasExactCoords bool `json:"hasExactCoords"`

	NDASignee string `json:"ndaSignee"`

	// Raw — полная карта заголовок→значение, включая колонки,
	// не покрытые канонической моделью.
	Raw map[string]string `json:"raw"`
}

// DisplayName возвращает отображаемое имя записи по цепочке фолбэков:
// pseudo → "prénom nom" → société → "". Запись с пустым результатом
// непригодна для отображения и отбрасывается при чтении.
func (r *Record) DisplayName() string {
	if p := strings.TrimSpace(r.Pseudo); p != "" {
		return p
	}
	full := strings.TrimSpace(strings.TrimSpace(r.Prenom) + " " + strings.TrimSpace(r.Nom))
	if full != "" {
		return full
	}
	return strings.TrimSpace(r.Societe)
}

// Snapshot — результат полного чтения одной таблицы.
// Пересоздаётся целиком при каждом чтении, никогда не патчится по полям.
type Snapshot struct {
	Kind      TableKind `json:"kind"`
	Headers   []string  `json:"headers"`
	Records   []Record  `json:"records"`
	FetchedAt time.Time `json:"fetchedAt"`
	// Stale — true, когда снимок отдан из офлайн-кэша или пережил TTL
	// из-за недоступности сети. Клиент обязан видеть устаревание явно.
	Stale bool `json:"stale"`
}
