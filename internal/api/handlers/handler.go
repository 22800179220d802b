// handler.go — основной обработчик API Data Module.
// Таблицы и записи адресуются как в модели: тип таблицы + индекс строки.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/globecontacts/data-module/internal/api/errors"
	"github.com/globecontacts/data-module/internal/domain/apperr"
	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/schema"
	"github.com/globecontacts/data-module/internal/service"
)

// knownFields — канонические поля, допустимые в телах мутаций.
var knownFields = func() map[model.Field]struct{} {
	m := make(map[model.Field]struct{})
	for _, f := range schema.Fields() {
		m[f] = struct{}{}
	}
	return m
}()

// APIHandler — основной обработчик API Data Module.
// Делегирует запросы в сервисный слой и маппит доменные ошибки
// в стандартный конверт.
type APIHandler struct {
	health *HealthHandler
	svc    *service.ContactsService
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, svc *service.ContactsService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health: health,
		svc:    svc,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Таблицы ---

// GetTable — снимок таблицы. ?refresh=1 форсирует обход TTL.
// GET /api/v1/tables/{kind}
func (h *APIHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.tableKind(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("refresh") == "1"
	snap, err := h.svc.Snapshot(r.Context(), kind, force)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// appendRequest — тело запроса добавления/изменения записи.
type appendRequest struct {
	Fields map[model.Field]string `json:"fields"`
}

// mutationResponse — ответ успешной мутации.
type mutationResponse struct {
	OK bool `json:"ok"`
}

// AppendRecord — добавление записи.
// POST /api/v1/tables/{kind}/records
func (h *APIHandler) AppendRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.tableKind(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	if err := h.svc.Append(r.Context(), kind, req.Fields); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{OK: true})
}

// UpdateRecord — изменение записи по индексу строки.
// PUT /api/v1/tables/{kind}/records/{rowIndex}
func (h *APIHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.tableKind(w, r)
	if !ok {
		return
	}
	rowIndex, ok := h.rowIndex(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	if err := h.svc.Update(r.Context(), kind, rowIndex, req.Fields); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{OK: true})
}

// DeleteRecord — удаление записи по индексу строки.
// DELETE /api/v1/tables/{kind}/records/{rowIndex}
func (h *APIHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.tableKind(w, r)
	if !ok {
		return
	}
	rowIndex, ok := h.rowIndex(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), kind, rowIndex); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{OK: true})
}

// --- Вспомогательные функции ---

// tableKind извлекает и валидирует тип таблицы из URL.
func (h *APIHandler) tableKind(w http.ResponseWriter, r *http.Request) (model.TableKind, bool) {
	raw := chi.URLParam(r, "kind")
	kind, ok := model.ParseTableKind(raw)
	if !ok {
		apierrors.ValidationError(w, "неизвестный тип таблицы: "+raw)
		return "", false
	}
	return kind, true
}

// decodeFields читает и валидирует тело мутации: непустая карта fields,
// все ключи — известные канонические поля.
func (h *APIHandler) decodeFields(w http.ResponseWriter, r *http.Request) (appendRequest, bool) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return req, false
	}
	if len(req.Fields) == 0 {
		apierrors.ValidationError(w, "fields не заданы")
		return req, false
	}
	for f := range req.Fields {
		if _, ok := knownFields[f]; !ok {
			apierrors.ValidationError(w, "неизвестное поле: "+string(f))
			return req, false
		}
	}
	return req, true
}

// rowIndex извлекает индекс строки из URL.
func (h *APIHandler) rowIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "rowIndex")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		apierrors.ValidationError(w, "некорректный индекс строки: "+raw)
		return 0, false
	}
	return idx, true
}

// writeDomainError маппит ошибку доменной таксономии в HTTP-ответ.
func (h *APIHandler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		configErr   *apperr.ConfigError
		authErr     *apperr.AuthError
		schemaErr   *apperr.SchemaError
		rowStateErr *apperr.RowStateError
		remoteErr   *apperr.RemoteError
	)

	switch {
	case errors.As(err, &configErr):
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeConfigError, configErr.Error())
	case errors.As(err, &authErr):
		apierrors.WriteError(w, http.StatusBadGateway, apierrors.CodeAuthError, authErr.Error())
	case errors.As(err, &schemaErr):
		apierrors.WriteError(w, http.StatusConflict, apierrors.CodeSchemaError, schemaErr.Error())
	case errors.As(err, &rowStateErr):
		apierrors.WriteError(w, http.StatusConflict, apierrors.CodeRowStateError, rowStateErr.Error())
	case errors.As(err, &remoteErr):
		apierrors.WriteError(w, http.StatusBadGateway, apierrors.CodeRemoteError, remoteErr.Error())
	default:
		h.logger.Error("необработанная ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, err.Error())
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
