// Пакет apperr — таксономия ошибок слоя доступа к данным.
// Типизированные ошибки несут диагностический контекст (статус, тело ответа,
// доступные листы), чтобы обработчики API могли отдать осмысленный код
// без потери деталей для оператора.
package apperr

import (
	"fmt"
	"strings"
)

// ConfigError — отсутствующая или некорректная конфигурация
// (credentials, идентификатор книги). Не ретраится, показывается оператору.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "ошибка конфигурации: " + e.Msg
}

// AuthError — ошибка подписи assertion или обмена на токен.
// Body — сырое тело ответа token endpoint (пустое при локальной ошибке).
type AuthError struct {
	Op   string
	Body string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("ошибка аутентификации (%s): %s", e.Op, e.Body)
	}
	return fmt.Sprintf("ошибка аутентификации (%s): %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SchemaError — целевой лист или колонка отсутствуют.
// Available перечисляет существующие листы для диагностики.
type SchemaError struct {
	Sheet     string
	Available []string
	Msg       string
}

func (e *SchemaError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("лист %q не найден, доступные листы: %s",
			e.Sheet, strings.Join(e.Available, ", "))
	}
	return "ошибка схемы: " + e.Msg
}

// RemoteError — не-2xx ответ любой внешней HTTP-зависимости.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: удалённый сервис вернул статус %d: %s", e.Op, e.Status, e.Body)
}

// RowStateError — индекс строки вне текущих границ, строка пуста либо
// таблица неожиданно сократилась после чтения, породившего индекс.
type RowStateError struct {
	Row int
	Msg string
}

func (e *RowStateError) Error() string {
	return fmt.Sprintf("некорректное состояние строки %d: %s", e.Row, e.Msg)
}
