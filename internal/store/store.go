// Пакет store — CRUD над логическими таблицами книги.
// Наружу — записи с каноническими полями, внутри — позиционная адресация
// строк. Строка адресуется rowIndex (0-based среди строк данных);
// физическая строка листа = rowIndex + 2, заголовок занимает строку 1.
//
// Известное ограничение: update выполняет read-modify-write без изоляции.
// Внешняя правка той же строки между чтением и записью молча затирается.
// Это принятая семантика существующей системы, блокировки не добавляются.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/globecontacts/data-module/internal/domain/apperr"
	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/schema"
	"github.com/globecontacts/data-module/internal/sheets"
)

// Store — доступ к таблицам контактов одной книги.
type Store struct {
	client     *sheets.Client
	sheetNames map[model.TableKind]string
	logger     *slog.Logger
}

// New создаёт Store.
// sheetNames — имена листов по типам таблиц (из конфигурации).
func New(client *sheets.Client, sheetNames map[model.TableKind]string, logger *slog.Logger) *Store {
	return &Store{
		client:     client,
		sheetNames: sheetNames,
		logger:     logger.With(slog.String("component", "sheet_store")),
	}
}

// sheetName возвращает имя листа для типа таблицы.
func (s *Store) sheetName(kind model.TableKind) (string, error) {
	name, ok := s.sheetNames[kind]
	if !ok || name == "" {
		return "", &apperr.ConfigError{Msg: fmt.Sprintf("лист для таблицы %q не сконфигурирован", kind)}
	}
	return name, nil
}

// ReadAll читает таблицу целиком и декодирует строки данных в записи.
// Строки без пригодного отображаемого имени (после всех фолбэков)
// отбрасываются. Схема пересчитывается по свежим заголовкам.
func (s *Store) ReadAll(ctx context.Context, kind model.TableKind) (*model.Snapshot, error) {
	name, err := s.sheetName(kind)
	if err != nil {
		return nil, err
	}

	values, err := s.client.GetValues(ctx, name)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{Kind: kind, Records: []model.Record{}}
	if len(values) == 0 {
		return snap, nil
	}

	snap.Headers = values[0]
	cols := schema.ResolveColumns(snap.Headers)

	dropped := 0
	for i, row := range values[1:] {
		rec := decodeRecord(i, snap.Headers, cols, row)
		if rec.DisplayName() == "" {
			dropped++
			continue
		}
		snap.Records = append(snap.Records, rec)
	}

	if dropped > 0 {
		s.logger.Debug("строки без отображаемого имени отброшены",
			slog.String("table", string(kind)),
			slog.Int("dropped", dropped),
		)
	}

	return snap, nil
}

// Append добавляет запись в конец таблицы.
// Заголовки читаются заново: схема листа могла измениться, полагаться
// на закэшированную нельзя.
func (s *Store) Append(ctx context.Context, kind model.TableKind, fields map[model.Field]string) error {
	name, err := s.sheetName(kind)
	if err != nil {
		return err
	}

	headers, err := s.headerRow(ctx, name)
	if err != nil {
		return err
	}

	row := schema.BuildRow(headers, fields, nil)
	return s.client.AppendRow(ctx, name, row)
}

// Update перезаписывает запись по месту: свежие заголовки и целевая строка
// читаются параллельно, новые значения полей накладываются на существующую
// сырую строку (неуказанные поля сохраняются), результат пишется в ту же
// физическую позицию. Версионной проверки нет — см. комментарий пакета.
func (s *Store) Update(ctx context.Context, kind model.TableKind, rowIndex int, fields map[model.Field]string) error {
	if rowIndex < 0 {
		return &apperr.RowStateError{Row: rowIndex, Msg: "индекс строки отрицательный"}
	}

	name, err := s.sheetName(kind)
	if err != nil {
		return err
	}

	rowNum := rowIndex + 2

	var headers []string
	var existing [][]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		headers, err = s.headerRow(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = s.client.GetValues(gctx, fmt.Sprintf("%s!%d:%d", name, rowNum, rowNum))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if len(existing) == 0 || rowEmpty(existing[0]) {
		return &apperr.RowStateError{Row: rowIndex, Msg: "целевая строка пуста или отсутствует"}
	}

	merged := schema.BuildRow(headers, fields, existing[0])
	return s.client.UpdateRow(ctx, fmt.Sprintf("%s!A%d", name, rowNum), merged)
}

// Delete удаляет запись.
//
// Последняя оставшаяся строка данных НЕ удаляется: backend отвергает
// dimension-delete, сносящий все строки данных листа. Вместо этого её
// содержимое перезаписывается пустой строкой той же ширины.
// Остальные строки удаляются через deleteDimension по интервалу
// [rowIndex+1, rowIndex+2) в 0-based координатах листа.
func (s *Store) Delete(ctx context.Context, kind model.TableKind, rowIndex int) error {
	name, err := s.sheetName(kind)
	if err != nil {
		return err
	}

	sheetID, err := s.client.SheetID(ctx, name)
	if err != nil {
		return err
	}

	values, err := s.client.GetValues(ctx, name)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return &apperr.RowStateError{Row: rowIndex, Msg: "лист пуст"}
	}

	dataRows := len(values) - 1
	if rowIndex < 0 || rowIndex >= dataRows {
		return &apperr.RowStateError{Row: rowIndex,
			Msg: fmt.Sprintf("индекс вне границ: в таблице %d строк данных (таблица могла сократиться после чтения)", dataRows)}
	}
	if rowEmpty(values[rowIndex+1]) {
		return &apperr.RowStateError{Row: rowIndex, Msg: "целевая строка пуста"}
	}

	if dataRows == 1 {
		blank := make([]string, len(values[0]))
		return s.client.UpdateRow(ctx, fmt.Sprintf("%s!A%d", name, rowIndex+2), blank)
	}

	return s.client.DeleteRows(ctx, sheetID, rowIndex+1, rowIndex+2)
}

// headerRow читает первую строку листа.
func (s *Store) headerRow(ctx context.Context, name string) ([]string, error) {
	values, err := s.client.GetValues(ctx, name+"!1:1")
	if err != nil {
		return nil, err
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, &apperr.SchemaError{Msg: fmt.Sprintf("лист %q не содержит строки заголовков", name)}
	}
	return values[0], nil
}

// rowEmpty — true, если все ячейки строки пусты (после trim).
func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// decodeRecord строит запись из сырой позиционной строки.
// Канонические поля берутся через разрешённые колонки, полная карта
// заголовок→значение сохраняется в Raw.
func decodeRecord(rowIndex int, headers []string, cols schema.Columns, row []string) model.Record {
	raw := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			raw[h] = row[i]
		} else {
			raw[h] = ""
		}
	}

	rec := model.Record{
		RowIndex:  rowIndex,
		Pseudo:    strings.TrimSpace(cols.Value(row, model.FieldPseudo)),
		Prenom:    strings.TrimSpace(cols.Value(row, model.FieldPrenom)),
		Nom:       strings.TrimSpace(cols.Value(row, model.FieldNom)),
		Societe:   strings.TrimSpace(cols.Value(row, model.FieldSociete)),
		Pays:      strings.TrimSpace(cols.Value(row, model.FieldPays)),
		Region:    strings.TrimSpace(cols.Value(row, model.FieldRegion)),
		Ville:     strings.TrimSpace(cols.Value(row, model.FieldVille)),
		NDASignee: strings.TrimSpace(cols.Value(row, model.FieldNDASignee)),
		Raw:       raw,
	}

	lat, latOK := parseCoordinate(cols.Value(row, model.FieldLatitude))
	lon, lonOK := parseCoordinate(cols.Value(row, model.FieldLongitude))
	if latOK && lonOK {
		rec.Coords = &model.Coordinates{Lat: lat, Lon: lon}
		rec.HasExactCoords = true
	}

	return rec
}

// parseCoordinate разбирает координату из ячейки.
// Листы заполняются на французской локали — запятая как десятичный
// разделитель встречается наравне с точкой.
func parseCoordinate(cell string) (float64, bool) {
	cell = strings.TrimSpace(strings.ReplaceAll(cell, ",", "."))
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
