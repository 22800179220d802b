// Пакет geocode — многоярусное разрешение неточного текста местоположения
// в координаты: встроенный справочник → внешний геокодер.
// Первый ярус (точные координаты в самой записи) живёт у вызывающего кода —
// такие записи сюда не попадают.
//
// Внешние запросы глобально троттлятся: политика сервиса геокодирования
// запрещает обращаться чаще, чем раз в ~секунду. Троттлинг — механизм
// backpressure всего конвейера обогащения, обходить его нельзя.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/globecontacts/data-module/internal/domain/apperr"
	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/schema"
)

// Prometheus-метрики геокодера.
var (
	externalRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_geocode_external_requests_total",
		Help: "Количество запросов к внешнему сервису геокодирования.",
	})
	geocodeCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_geocode_cache_hits_total",
		Help: "Количество разрешений из сессионного кэша геокодера.",
	})
)

// Resolver — многоярусный геокодер с сессионным кэшем и глобальным
// троттлингом внешних запросов. Экземпляр владеет своим кэшем и лимитером.
type Resolver struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	lang       string
	limiter    *rate.Limiter
	// Сессионный кэш результатов яруса 3: ключ "город|страна",
	// запись создаётся один раз и не истекает — география мест не меняется.
	cache  *lru.Cache[string, model.Coordinates]
	logger *slog.Logger
}

// New создаёт Resolver.
// minInterval — минимальная пауза между последовательными внешними
// запросами (burst 1: накопление "кредита" на пачку запрещено).
func New(baseURL, userAgent, lang string, minInterval time.Duration, cacheSize int, timeout time.Duration, logger *slog.Logger) (*Resolver, error) {
	cache, err := lru.New[string, model.Coordinates](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("создание кэша геокодера: %w", err)
	}

	return &Resolver{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		lang:       lang,
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		cache:      cache,
		logger:     logger.With(slog.String("component", "geocode_resolver")),
	}, nil
}

// Key возвращает нормализованный ключ "город|страна" для кэша
// и пометок "уже пробовали".
func Key(city, country string) string {
	return schema.Normalize(city) + "|" + schema.Normalize(country)
}

// Resolve разрешает пару (город, страна) в координаты.
// Ярусы по порядку, выигрывает первый успех: справочник → сессионный кэш →
// внешний геокодер (не больше одного запроса, берётся первый кандидат).
// Кэш и справочник проверяются ДО троттлинга — попадания не ждут паузу.
//
// (nil, nil) означает "координаты в этот проход недоступны": пустой ответ
// внешнего сервиса. Сетевая ошибка возвращается вызывающему для логирования,
// но трактуется так же — не фатально.
func (r *Resolver) Resolve(ctx context.Context, city, country string) (*model.Coordinates, error) {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" && country == "" {
		return nil, nil
	}

	key := Key(city, country)

	if c, ok := lookupGazetteer(key); ok {
		return &c, nil
	}
	if c, ok := r.cache.Get(key); ok {
		geocodeCacheHitsTotal.Inc()
		return &c, nil
	}

	// Глобальный троттлинг: следующий внешний запрос не раньше,
	// чем через minInterval после предыдущего
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	coords, err := r.lookupExternal(ctx, city, country)
	if err != nil {
		return nil, err
	}
	if coords == nil {
		return nil, nil
	}

	r.cache.Add(key, *coords)
	return coords, nil
}

// lookupExternal выполняет один запрос к внешнему геокодеру.
// q = "город, страна", либо только страна при пустом городе.
func (r *Resolver) lookupExternal(ctx context.Context, city, country string) (*model.Coordinates, error) {
	q := country
	if city != "" {
		q = city + ", " + country
	}

	params := url.Values{
		"q":               {q},
		"format":          {"json"},
		"limit":           {"1"},
		"accept-language": {r.lang},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса геокодера: %w", err)
	}
	// Сервис требует описательный User-Agent
	req.Header.Set("User-Agent", r.userAgent)

	externalRequestsTotal.Inc()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос геокодера для %q: %w", q, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &apperr.RemoteError{Op: "геокодирование " + q, Status: resp.StatusCode, Body: string(body)}
	}

	// Кандидаты с координатами числовыми строками
	var candidates []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("декодирование ответа геокодера для %q: %w", q, err)
	}
	if len(candidates) == 0 {
		r.logger.Debug("геокодер не нашёл кандидатов", slog.String("query", q))
		return nil, nil
	}

	lat, err := strconv.ParseFloat(candidates[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректная широта %q: %w", candidates[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(candidates[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректная долгота %q: %w", candidates[0].Lon, err)
	}

	return &model.Coordinates{Lat: lat, Lon: lon}, nil
}
