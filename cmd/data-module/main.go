// main.go — точка входа Data Module: sidecar слоя данных для оболочки
// визуализации контактов. Собирает цепочку token manager → клиент книги →
// store → кэш чтения → сервис и поднимает localhost HTTP API.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/globecontacts/data-module/internal/api/handlers"
	"github.com/globecontacts/data-module/internal/api/middleware"
	"github.com/globecontacts/data-module/internal/auth"
	"github.com/globecontacts/data-module/internal/cache"
	"github.com/globecontacts/data-module/internal/config"
	"github.com/globecontacts/data-module/internal/database"
	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/geocode"
	"github.com/globecontacts/data-module/internal/journal"
	"github.com/globecontacts/data-module/internal/repository"
	"github.com/globecontacts/data-module/internal/server"
	"github.com/globecontacts/data-module/internal/service"
	"github.com/globecontacts/data-module/internal/sheets"
	"github.com/globecontacts/data-module/internal/store"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Data Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Bool("offline_cache", cfg.OfflineEnabled()),
	)

	// 3. Идентичность сервисного аккаунта и менеджер токенов
	cred, err := auth.LoadCredential(cfg.CredentialsPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки credentials: %v", err)
	}
	tokens, err := auth.NewManager(cred, cfg.TokenScope, cfg.HTTPClientTimeout, logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации менеджера токенов: %v", err)
	}

	// 4. Клиент книги и store
	client, err := sheets.New(cfg.SheetsAPIURL, cfg.SpreadsheetID, cfg.HTTPClientTimeout, tokens.GetAccessToken, logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации клиента книги: %v", err)
	}
	sheetStore := store.New(client, map[model.TableKind]string{
		model.TableContacts:    cfg.ContactsSheet,
		model.TableCommerciaux: cfg.CommerciauxSheet,
	}, logger)

	// 5. Офлайн-кэш (опционально)
	var offline repository.OfflineCacheRepository
	var pgChecker handlers.ReadinessChecker
	if cfg.OfflineEnabled() {
		if err := database.Migrate(cfg, logger); err != nil {
			log.Fatalf("Ошибка миграций офлайн-кэша: %v", err)
		}
		pool, err := database.Connect(context.Background(), cfg, logger)
		if err != nil {
			log.Fatalf("Ошибка подключения к офлайн-кэшу: %v", err)
		}
		defer pool.Close()
		offline = repository.NewOfflineCacheRepository(pool)
		pgChecker = database.NewPoolChecker(pool)
	}

	// 6. Кэш чтения, геокодер, журнал, сервис
	readCache := cache.New(sheetStore, offline, cfg.CacheTTL, logger)

	resolver, err := geocode.New(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderLang,
		cfg.GeocodeMinInterval, cfg.GeocodeCacheSize, cfg.HTTPClientTimeout, logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации геокодера: %v", err)
	}

	recorder := journal.New(client, cfg.JournalSheet, logger)

	svc := service.New(readCache, sheetStore, resolver, recorder, logger)

	// 7. HTTP-сервер
	healthHandler := handlers.NewHealthHandler(pgChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, svc, logger)

	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 8. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("Data Module остановлен")
}
