// Пакет schema — разрешение канонических полей в позиции колонок листа
// и сборка позиционных строк. Схема пересчитывается при каждом чтении
// заголовков: физический лист мог получить или потерять колонки
// между сессиями.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/globecontacts/data-module/internal/domain/model"
)

// ColumnAbsent — sentinel-индекс неразрешённого поля.
// Для вызывающего кода это "поле нечитаемо/незаписываемо в этом листе",
// а не ошибка.
const ColumnAbsent = -1

// Columns — отображение каноническое поле → индекс колонки.
type Columns map[model.Field]int

// Index возвращает индекс колонки поля или ColumnAbsent.
func (c Columns) Index(f model.Field) int {
	if idx, ok := c[f]; ok {
		return idx
	}
	return ColumnAbsent
}

// Value возвращает значение поля из позиционной строки.
// Отсутствующее поле или строка короче индекса — пустая строка.
func (c Columns) Value(row []string, f model.Field) string {
	idx := c.Index(f)
	if idx == ColumnAbsent || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Normalize приводит заголовок к форме сравнения:
// trim, нижний регистр, одиночные пробелы, без диакритики.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = stripDiacritics(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripDiacritics убирает диакритические знаки: NFD-декомпозиция
// и отбрасывание combining marks (категория Mn).
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ResolveColumns разрешает канонические поля в позиции колонок.
// Для каждого поля берётся ПЕРВЫЙ псевдоним из списка, чей нормализованный
// заголовок присутствует в строке заголовков. Неразрешённые поля
// в результат не попадают (Index вернёт ColumnAbsent).
func ResolveColumns(headers []string) Columns {
	lookup := make(map[string]int, len(headers))
	for i, h := range headers {
		key := Normalize(h)
		if key == "" {
			continue
		}
		// При дубликатах заголовков выигрывает первая колонка
		if _, exists := lookup[key]; !exists {
			lookup[key] = i
		}
	}

	cols := make(Columns, len(aliasTable))
	for _, fa := range aliasTable {
		for _, alias := range fa.aliases {
			if idx, ok := lookup[alias]; ok {
				cols[fa.field] = idx
				break
			}
		}
	}
	return cols
}

// BuildRow собирает позиционную строку шириной len(headers).
// Каждое разрешённое поле записывается (с trim) в свою колонку;
// остальные позиции копируются из baseRow либо остаются пустыми.
// Поля, не разрешённые в текущей схеме, молча пропускаются.
func BuildRow(headers []string, fields map[model.Field]string, baseRow []string) []string {
	row := make([]string, len(headers))
	for i := range row {
		if i < len(baseRow) {
			row[i] = baseRow[i]
		}
	}

	cols := ResolveColumns(headers)
	for field, value := range fields {
		idx := cols.Index(field)
		if idx == ColumnAbsent || idx >= len(row) {
			continue
		}
		row[idx] = strings.TrimSpace(value)
	}
	return row
}
