// Пакет errors — конструкторы стандартных ошибок HTTP API Data Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Мутации отвечают этим конвертом вместо раскрутки исключений —
// оболочка показывает ошибку инлайн, не теряя уже отображённых данных.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок слоя данных.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeConfigError     = "CONFIG_ERROR"
	CodeAuthError       = "AUTH_ERROR"
	CodeSchemaError     = "SCHEMA_ERROR"
	CodeRowStateError   = "ROW_STATE_ERROR"
	CodeRemoteError     = "REMOTE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
