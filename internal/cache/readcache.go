// Пакет cache — сквозной кэш чтения таблиц: моментальный ответ из памяти
// в пределах TTL, best-effort первый кадр из персистентного офлайн-кэша
// и фоновое сетевое обновление.
//
// Каждому сетевому чтению присваивается монотонный порядковый номер
// на таблицу; результат, завершившийся позже более нового, отбрасывается —
// запоздавший in-flight запрос не может затереть свежие данные.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/repository"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_cache_hits_total",
		Help: "Количество чтений таблиц, отданных из памяти без I/O.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_cache_misses_total",
		Help: "Количество чтений таблиц, потребовавших офлайн-кэш или сеть.",
	})
)

// Reader — источник полного чтения таблицы. Реализуется store.Store.
type Reader interface {
	ReadAll(ctx context.Context, kind model.TableKind) (*model.Snapshot, error)
}

// entry — состояние кэша одной таблицы.
type entry struct {
	snapshot  *model.Snapshot
	fetchedAt time.Time
	// nextSeq/appliedSeq — порядковые номера сетевых чтений.
	nextSeq    uint64
	appliedSeq uint64
}

// ReadCache — сквозной кэш чтения.
// Экземпляр владеет всем изменяемым состоянием; внешних путей мутации нет.
type ReadCache struct {
	reader  Reader
	offline repository.OfflineCacheRepository // nil — офлайн-кэш отключён
	ttl     time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	entries   map[model.TableKind]*entry
	observers []func(model.TableKind)
}

// New создаёт кэш чтения.
// offline может быть nil — тогда первый кадр всегда ждёт сеть.
func New(reader Reader, offline repository.OfflineCacheRepository, ttl time.Duration, logger *slog.Logger) *ReadCache {
	return &ReadCache{
		reader:  reader,
		offline: offline,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "read_cache")),
		entries: make(map[model.TableKind]*entry),
	}
}

// OnChange регистрирует наблюдателя, уведомляемого после применения
// нового снимка или обогащения координат. Вызывается вне блокировки.
func (c *ReadCache) OnChange(fn func(model.TableKind)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Get возвращает снимок таблицы.
//
// Политика: без force свежая (моложе TTL) запись в памяти отдаётся без I/O.
// Иначе, при наличии персистированного снимка, он отдаётся немедленно как
// устаревший первый кадр, а сетевое чтение запускается асинхронно.
// Без персистированного снимка сетевое чтение ожидается; при его ошибке
// кэш деградирует к последним хорошим данным (явно помеченным stale),
// ошибка наружу уходит только при полном отсутствии данных.
func (c *ReadCache) Get(ctx context.Context, kind model.TableKind, force bool) (*model.Snapshot, error) {
	c.mu.Lock()
	e := c.entry(kind)
	if !force && e.snapshot != nil && time.Since(e.fetchedAt) < c.ttl {
		snap := copySnapshot(e.snapshot)
		c.mu.Unlock()
		cacheHitsTotal.Inc()
		return snap, nil
	}
	hasMemory := e.snapshot != nil
	c.mu.Unlock()
	cacheMissesTotal.Inc()

	if c.offline != nil && !hasMemory {
		if snap, ok := c.offlineGet(ctx, kind); ok {
			c.mu.Lock()
			e.snapshot = snap
			e.fetchedAt = snap.FetchedAt
			out := copySnapshot(snap)
			c.mu.Unlock()

			go func() {
				// Обновление переживает запрос, породивший первый кадр
				if _, err := c.Refresh(context.WithoutCancel(ctx), kind); err != nil {
					c.logger.Warn("фоновое обновление не удалось, офлайн-снимок остаётся авторитетным",
						slog.String("table", string(kind)),
						slog.String("error", err.Error()),
					)
				}
			}()

			out.Stale = true
			return out, nil
		}
	}

	snap, err := c.Refresh(ctx, kind)
	if err != nil {
		c.mu.Lock()
		if e.snapshot != nil {
			stale := copySnapshot(e.snapshot)
			stale.Stale = true
			c.mu.Unlock()
			c.logger.Warn("сетевое чтение не удалось, отдаю последний хороший снимок",
				slog.String("table", string(kind)),
				slog.String("error", err.Error()),
			)
			return stale, nil
		}
		c.mu.Unlock()
		return nil, err
	}
	return snap, nil
}

// Refresh выполняет сетевое чтение и применяет результат, если за время
// полёта не был применён более новый. Возвращает актуальный снимок кэша.
// Используется напрямую после мутаций (форсированное обновление).
func (c *ReadCache) Refresh(ctx context.Context, kind model.TableKind) (*model.Snapshot, error) {
	c.mu.Lock()
	e := c.entry(kind)
	e.nextSeq++
	seq := e.nextSeq
	c.mu.Unlock()

	snap, err := c.reader.ReadAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now()

	c.mu.Lock()
	if seq < e.appliedSeq {
		// Пришёл ответ запроса, обогнанного более новым — отбрасываем
		c.logger.Debug("устаревший ответ чтения отброшен",
			slog.String("table", string(kind)),
			slog.Uint64("seq", seq),
			slog.Uint64("applied", e.appliedSeq),
		)
		out := copySnapshot(e.snapshot)
		c.mu.Unlock()
		return out, nil
	}
	e.appliedSeq = seq
	e.snapshot = snap
	e.fetchedAt = snap.FetchedAt
	out := copySnapshot(snap)
	c.mu.Unlock()

	c.persistOffline(ctx, snap)
	c.notify(kind)
	return out, nil
}

// ApplyCoordinates проставляет приближённые координаты записи кэшированного
// снимка по мере ответов геокодера. Записи с точными координатами
// не трогаются. Возвращает true, если снимок изменился.
func (c *ReadCache) ApplyCoordinates(kind model.TableKind, rowIndex int, coords *model.Coordinates) bool {
	c.mu.Lock()
	e := c.entry(kind)
	applied := false
	if e.snapshot != nil {
		for i := range e.snapshot.Records {
			rec := &e.snapshot.Records[i]
			if rec.RowIndex != rowIndex {
				continue
			}
			if !rec.HasExactCoords && rec.Coords == nil {
				rec.Coords = coords
				applied = true
			}
			break
		}
	}
	c.mu.Unlock()

	if applied {
		c.notify(kind)
	}
	return applied
}

// entry возвращает (создавая при необходимости) состояние таблицы.
// Вызывается под блокировкой.
func (c *ReadCache) entry(kind model.TableKind) *entry {
	e, ok := c.entries[kind]
	if !ok {
		e = &entry{}
		c.entries[kind] = e
	}
	return e
}

// offlineGet читает персистированный снимок.
// Отсутствие записи — ожидаемый промах; прочие ошибки логируются
// для оператора как неожиданные.
func (c *ReadCache) offlineGet(ctx context.Context, kind model.TableKind) (*model.Snapshot, bool) {
	persisted, err := c.offline.Get(ctx, kind)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.logger.Error("неожиданная ошибка офлайн-кэша",
				slog.String("table", string(kind)),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var snap model.Snapshot
	if err := json.Unmarshal(persisted.DataJSON, &snap); err != nil {
		c.logger.Error("повреждённый офлайн-снимок пропущен",
			slog.String("table", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	snap.FetchedAt = persisted.FetchedAt
	return &snap, true
}

// persistOffline сохраняет успешно прочитанный снимок в офлайн-кэш.
// Ошибка не блокирует чтение, но логируется для оператора.
func (c *ReadCache) persistOffline(ctx context.Context, snap *model.Snapshot) {
	if c.offline == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("сериализация снимка для офлайн-кэша не удалась",
			slog.String("table", string(snap.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.offline.Upsert(ctx, snap.Kind, data, snap.FetchedAt); err != nil {
		c.logger.Error("сохранение офлайн-снимка не удалось",
			slog.String("table", string(snap.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// notify уведомляет наблюдателей. Вызывается вне блокировки.
func (c *ReadCache) notify(kind model.TableKind) {
	c.mu.Lock()
	observers := make([]func(model.TableKind), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(kind)
	}
}

// copySnapshot возвращает копию снимка с собственным срезом записей,
// чтобы фоновое обогащение координат не гонялось с сериализацией ответа.
func copySnapshot(snap *model.Snapshot) *model.Snapshot {
	if snap == nil {
		return nil
	}
	out := *snap
	out.Records = make([]model.Record, len(snap.Records))
	copy(out.Records, snap.Records)
	return &out
}
