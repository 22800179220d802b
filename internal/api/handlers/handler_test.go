package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/globecontacts/data-module/internal/domain/apperr"
	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/journal"
	"github.com/globecontacts/data-module/internal/service"
)

// fakeCache — SnapshotCache с фиксированным снимком.
type fakeCache struct {
	snapshot *model.Snapshot
	err      error
}

func (f *fakeCache) Get(ctx context.Context, kind model.TableKind, force bool) (*model.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeCache) Refresh(ctx context.Context, kind model.TableKind) (*model.Snapshot, error) {
	return f.Get(ctx, kind, true)
}

func (f *fakeCache) ApplyCoordinates(kind model.TableKind, rowIndex int, coords *model.Coordinates) bool {
	return false
}

// fakeStore — MutationStore с настраиваемой ошибкой.
type fakeStore struct {
	err error
}

func (f *fakeStore) Append(ctx context.Context, kind model.TableKind, fields map[model.Field]string) error {
	return f.err
}

func (f *fakeStore) Update(ctx context.Context, kind model.TableKind, rowIndex int, fields map[model.Field]string) error {
	return f.err
}

func (f *fakeStore) Delete(ctx context.Context, kind model.TableKind, rowIndex int) error {
	return f.err
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, city, country string) (*model.Coordinates, error) {
	return nil, nil
}

type fakeJournal struct{}

func (fakeJournal) Record(ctx context.Context, action string, kind model.TableKind, e journal.Entry) {
}

// newTestServer собирает API поверх фейков и chi-роутера с теми же
// маршрутами, что и production-сервер.
func newTestServer(t *testing.T, cache *fakeCache, store *fakeStore) *httptest.Server {
	t.Helper()

	if cache == nil {
		cache = &fakeCache{snapshot: &model.Snapshot{Kind: model.TableContacts, Records: []model.Record{}}}
	}
	if store == nil {
		store = &fakeStore{}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(cache, store, fakeResolver{}, fakeJournal{}, logger)
	handler := NewAPIHandler(NewHealthHandler(nil), svc, logger)

	router := chi.NewRouter()
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Route("/api/v1/tables/{kind}", func(r chi.Router) {
		r.Get("/", handler.GetTable)
		r.Post("/records", handler.AppendRecord)
		r.Put("/records/{rowIndex}", handler.UpdateRecord)
		r.Delete("/records/{rowIndex}", handler.DeleteRecord)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// errorEnvelope — стандартный конверт ошибки API.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("декодирование конверта ошибки: %v", err)
	}
	return env
}

// TestGetTable_OK проверяет успешное чтение снимка.
func TestGetTable_OK(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{
		Kind:    model.TableContacts,
		Headers: []string{"Pseudo"},
		Records: []model.Record{{RowIndex: 0, Pseudo: "Alice"}},
	}}
	srv := newTestServer(t, cache, nil)

	resp, err := http.Get(srv.URL + "/api/v1/tables/contacts")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус = %d", resp.StatusCode)
	}

	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("декодирование снимка: %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].Pseudo != "Alice" {
		t.Errorf("снимок: %+v", snap.Records)
	}
}

// TestGetTable_UnknownKind проверяет валидацию типа таблицы.
func TestGetTable_UnknownKind(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, err := http.Get(srv.URL + "/api/v1/tables/fournisseurs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("статус = %d, ожидался 400", resp.StatusCode)
	}
	if env := decodeError(t, resp); env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("код = %q", env.Error.Code)
	}
}

// TestAppendRecord проверяет успешное добавление и валидацию тела.
func TestAppendRecord(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	// Успешное добавление.
	resp, err := http.Post(srv.URL+"/api/v1/tables/contacts/records", "application/json",
		strings.NewReader(`{"fields":{"pseudo":"Alice","pays":"France"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("статус = %d, ожидался 201", resp.StatusCode)
	}

	// Пустые fields.
	resp, err = http.Post(srv.URL+"/api/v1/tables/contacts/records", "application/json",
		strings.NewReader(`{"fields":{}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", resp.StatusCode)
	}

	// Неизвестное поле.
	resp, err = http.Post(srv.URL+"/api/v1/tables/contacts/records", "application/json",
		strings.NewReader(`{"fields":{"telephone":"0601020304"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("статус = %d, неизвестное поле должно отклоняться", resp.StatusCode)
	}
	if env := decodeError(t, resp); env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("код = %q", env.Error.Code)
	}
}

// TestUpdateRecord_BadRowIndex проверяет валидацию индекса строки.
func TestUpdateRecord_BadRowIndex(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/tables/contacts/records/abc",
		strings.NewReader(`{"fields":{"ville":"Lyon"}}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("статус = %d, ожидался 400", resp.StatusCode)
	}
	if env := decodeError(t, resp); env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("код = %q", env.Error.Code)
	}
}

// TestDomainErrorMapping проверяет маппинг доменных ошибок в HTTP-статусы.
func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"row_state", &apperr.RowStateError{Row: 5, Msg: "строка пуста"}, http.StatusConflict, "ROW_STATE_ERROR"},
		{"schema", &apperr.SchemaError{Sheet: "Contacts"}, http.StatusConflict, "SCHEMA_ERROR"},
		{"remote", &apperr.RemoteError{Op: "чтение", Status: 503}, http.StatusBadGateway, "REMOTE_ERROR"},
		{"auth", &apperr.AuthError{Op: "обмен assertion"}, http.StatusBadGateway, "AUTH_ERROR"},
		{"config", &apperr.ConfigError{Msg: "лист не задан"}, http.StatusInternalServerError, "CONFIG_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, nil, &fakeStore{err: tc.err})

			req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tables/contacts/records/0", http.NoBody)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("DELETE: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.wantStatus {
				t.Errorf("статус = %d, ожидался %d", resp.StatusCode, tc.wantStatus)
			}
			if env := decodeError(t, resp); env.Error.Code != tc.wantCode {
				t.Errorf("код = %q, ожидался %q", env.Error.Code, tc.wantCode)
			}
		})
	}
}

// TestHealth проверяет liveness и readiness без офлайн-кэша.
func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, err := http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatalf("GET live: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live статус = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatalf("GET ready: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready статус = %d", resp.StatusCode)
	}

	var ready struct {
		Status string `json:"status"`
		Checks struct {
			OfflineCache struct {
				Status string `json:"status"`
			} `json:"offline_cache"`
		} `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		t.Fatalf("декодирование ready: %v", err)
	}
	if ready.Status != "ok" {
		t.Errorf("status = %q", ready.Status)
	}
	if ready.Checks.OfflineCache.Status != "disabled" {
		t.Errorf("offline_cache = %q, без конфигурации ожидался disabled", ready.Checks.OfflineCache.Status)
	}
}
