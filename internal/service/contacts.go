// Пакет service — бизнес-логика Data Module: сквозное чтение снимков,
// фоновое обогащение координат и мутации с журналированием
// и форсированным обновлением кэша.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/journal"
)

// SnapshotCache — кэш чтения таблиц. Реализуется cache.ReadCache.
type SnapshotCache interface {
	Get(ctx context.Context, kind model.TableKind, force bool) (*model.Snapshot, error)
	Refresh(ctx context.Context, kind model.TableKind) (*model.Snapshot, error)
	ApplyCoordinates(kind model.TableKind, rowIndex int, coords *model.Coordinates) bool
}

// MutationStore — мутирующие операции над таблицами. Реализуется store.Store.
type MutationStore interface {
	Append(ctx context.Context, kind model.TableKind, fields map[model.Field]string) error
	Update(ctx context.Context, kind model.TableKind, rowIndex int, fields map[model.Field]string) error
	Delete(ctx context.Context, kind model.TableKind, rowIndex int) error
}

// Resolver — геокодер. Реализуется geocode.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, city, country string) (*model.Coordinates, error)
}

// Journal — журнал аудита. Реализуется journal.Recorder.
type Journal interface {
	Record(ctx context.Context, action string, kind model.TableKind, e journal.Entry)
}

// Метки действий журнала аудита (язык листов — французский).
const (
	actionAppend = "ajout"
	actionUpdate = "modification"
	actionDelete = "suppression"
)

// ContactsService — оркестрация слоя данных.
type ContactsService struct {
	cache    SnapshotCache
	store    MutationStore
	resolver Resolver
	journal  Journal
	logger   *slog.Logger

	mu sync.Mutex
	// attempted — ключи "город|страна", уже безуспешно ходившие во внешний
	// геокодер в этой сессии: повторные бесплодные запросы не делаются.
	attempted map[string]struct{}
	// enriching — таблицы с активным конвейером обогащения.
	enriching map[model.TableKind]bool
}

// New создаёт ContactsService.
func New(cache SnapshotCache, store MutationStore, resolver Resolver, jrnl Journal, logger *slog.Logger) *ContactsService {
	return &ContactsService{
		cache:     cache,
		store:     store,
		resolver:  resolver,
		journal:   jrnl,
		logger:    logger.With(slog.String("component", "contacts_service")),
		attempted: make(map[string]struct{}),
		enriching: make(map[model.TableKind]bool),
	}
}

// Snapshot возвращает снимок таблицы и запускает фоновое обогащение
// координат для записей без точных координат. Ответы геокодера
// вливаются в кэшированный снимок по мере разрешения — следующий
// опрос клиента получает уже обогащённые записи.
func (s *ContactsService) Snapshot(ctx context.Context, kind model.TableKind, force bool) (*model.Snapshot, error) {
	snap, err := s.cache.Get(ctx, kind, force)
	if err != nil {
		return nil, err
	}

	s.startEnrichment(kind, snap.Records)
	return snap, nil
}

// startEnrichment запускает конвейер обогащения, если для таблицы
// он ещё не идёт.
func (s *ContactsService) startEnrichment(kind model.TableKind, records []model.Record) {
	s.mu.Lock()
	if s.enriching[kind] {
		s.mu.Unlock()
		return
	}
	s.enriching[kind] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.enriching[kind] = false
			s.mu.Unlock()
		}()
		s.enrich(context.Background(), kind, records)
	}()
}

// enrich разрешает координаты записей СТРОГО последовательно.
// Последовательность — не случайность однопоточного наследия, а механизм
// соблюдения лимита внешнего сервиса; распараллеливать нельзя.
func (s *ContactsService) enrich(ctx context.Context, kind model.TableKind, records []model.Record) {
	for i := range records {
		rec := &records[i]
		if rec.HasExactCoords || rec.Coords != nil {
			continue
		}
		if strings.TrimSpace(rec.Ville) == "" && strings.TrimSpace(rec.Pays) == "" {
			continue
		}

		key := geocodeKey(rec.Ville, rec.Pays)
		s.mu.Lock()
		_, tried := s.attempted[key]
		s.mu.Unlock()
		if tried {
			continue
		}

		coords, err := s.resolver.Resolve(ctx, rec.Ville, rec.Pays)
		if err != nil {
			s.logger.Warn("геокодирование не удалось, запись пропущена в этот проход",
				slog.String("table", string(kind)),
				slog.Int("row", rec.RowIndex),
				slog.String("error", err.Error()),
			)
		}
		if coords == nil {
			// Не нашли — помечаем, чтобы не долбить внешний сервис
			// при каждой перерисовке
			s.mu.Lock()
			s.attempted[key] = struct{}{}
			s.mu.Unlock()
			continue
		}

		s.cache.ApplyCoordinates(kind, rec.RowIndex, coords)
	}
}

// Append добавляет запись: запись в таблицу, best-effort строка журнала,
// форсированное обновление кэша.
func (s *ContactsService) Append(ctx context.Context, kind model.TableKind, fields map[model.Field]string) error {
	if err := s.store.Append(ctx, kind, fields); err != nil {
		return err
	}

	s.journal.Record(ctx, actionAppend, kind, journal.Entry{
		DisplayName: displayNameFromFields(fields),
		Detail:      "nouvelle fiche",
	})

	s.forceRefresh(ctx, kind)
	return nil
}

// Update перезаписывает запись по индексу строки.
func (s *ContactsService) Update(ctx context.Context, kind model.TableKind, rowIndex int, fields map[model.Field]string) error {
	if err := s.store.Update(ctx, kind, rowIndex, fields); err != nil {
		return err
	}

	s.journal.Record(ctx, actionUpdate, kind, journal.Entry{
		RecordID:    strconv.Itoa(rowIndex),
		DisplayName: displayNameFromFields(fields),
	})

	s.forceRefresh(ctx, kind)
	return nil
}

// Delete удаляет запись по индексу строки.
func (s *ContactsService) Delete(ctx context.Context, kind model.TableKind, rowIndex int) error {
	if err := s.store.Delete(ctx, kind, rowIndex); err != nil {
		return err
	}

	s.journal.Record(ctx, actionDelete, kind, journal.Entry{
		RecordID: strconv.Itoa(rowIndex),
	})

	s.forceRefresh(ctx, kind)
	return nil
}

// forceRefresh обновляет кэш после мутации. Мутация уже успешна —
// ошибка обновления логируется, но наружу не уходит.
func (s *ContactsService) forceRefresh(ctx context.Context, kind model.TableKind) {
	if _, err := s.cache.Refresh(ctx, kind); err != nil {
		s.logger.Warn("обновление кэша после мутации не удалось",
			slog.String("table", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// displayNameFromFields — имя для строки журнала по той же цепочке
// фолбэков, что и у записей. В сами колонки листа имя НЕ синтезируется.
func displayNameFromFields(fields map[model.Field]string) string {
	if p := strings.TrimSpace(fields[model.FieldPseudo]); p != "" {
		return p
	}
	full := strings.TrimSpace(strings.TrimSpace(fields[model.FieldPrenom]) + " " + strings.TrimSpace(fields[model.FieldNom]))
	if full != "" {
		return full
	}
	return strings.TrimSpace(fields[model.FieldSociete])
}

// geocodeKey — нормализованный ключ пары (город, страна).
// Дублирует geocode.Key, чтобы сервис зависел от интерфейса Resolver,
// а не от конкретного пакета геокодера.
func geocodeKey(city, country string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(country))
}
