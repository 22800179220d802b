package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/globecontacts/data-module/internal/domain/model"
)

// OfflineSnapshot — персистированный снимок одной таблицы:
// сериализованный JSON последнего успешного чтения и момент его получения.
type OfflineSnapshot struct {
	Kind      model.TableKind
	DataJSON  []byte
	FetchedAt time.Time
}

// OfflineCacheRepository — интерфейс таблицы offline_cache
// (одна строка на тип таблицы, upsert после каждого успешного чтения).
type OfflineCacheRepository interface {
	// Get возвращает персистированный снимок. Если его нет — ErrNotFound.
	Get(ctx context.Context, kind model.TableKind) (*OfflineSnapshot, error)
	// Upsert создаёт или заменяет снимок таблицы.
	Upsert(ctx context.Context, kind model.TableKind, dataJSON []byte, fetchedAt time.Time) error
}

// offlineRepo — реализация OfflineCacheRepository.
type offlineRepo struct {
	db DBTX
}

// NewOfflineCacheRepository создаёт репозиторий офлайн-кэша.
func NewOfflineCacheRepository(db DBTX) OfflineCacheRepository {
	return &offlineRepo{db: db}
}

// Get возвращает персистированный снимок таблицы.
func (r *offlineRepo) Get(ctx context.Context, kind model.TableKind) (*OfflineSnapshot, error) {
	query := `
		SELECT data_json, fetched_at
		FROM offline_cache
		WHERE contact_type = $1`

	s := &OfflineSnapshot{Kind: kind}
	err := r.db.QueryRow(ctx, query, string(kind)).Scan(&s.DataJSON, &s.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения offline_cache[%s]: %w", kind, err)
	}
	return s, nil
}

// Upsert создаёт или заменяет снимок (INSERT ... ON CONFLICT DO UPDATE).
func (r *offlineRepo) Upsert(ctx context.Context, kind model.TableKind, dataJSON []byte, fetchedAt time.Time) error {
	query := `
		INSERT INTO offline_cache (contact_type, data_json, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (contact_type) DO UPDATE
		SET data_json = EXCLUDED.data_json,
			fetched_at = EXCLUDED.fetched_at`

	_, err := r.db.Exec(ctx, query, string(kind), dataJSON, fetchedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения offline_cache[%s]: %w", kind, err)
	}
	return nil
}
