// requestid.go — middleware присвоения запросу идентификатора.
// Оболочка может передать собственный X-Request-Id для сквозной
// корреляции своих логов с логами sidecar.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// contextKeyRequestID — идентификатор запроса в контексте.
const contextKeyRequestID contextKey = "request_id"

// RequestID возвращает middleware, присваивающий каждому запросу
// идентификатор: входящий X-Request-Id либо новый UUID.
// Идентификатор кладётся в контекст и дублируется в заголовок ответа.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set("X-Request-Id", id)
			ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext возвращает идентификатор запроса из контекста
// (пустая строка, если middleware не применялся).
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
