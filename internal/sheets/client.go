// Пакет sheets — HTTP-клиент values/metadata/batchUpdate API удалённой книги.
// Позиционные операции над диапазонами; вся интерпретация строк —
// уровнем выше (пакет store).
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/globecontacts/data-module/internal/domain/apperr"
)

// TokenProvider — функция, возвращающая bearer-токен для авторизации
// запросов к книге. Обычно это auth.Manager.GetAccessToken.
type TokenProvider func(ctx context.Context) (string, error)

// Client — HTTP-клиент одной удалённой книги.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	spreadsheetID string
	tokens        TokenProvider
	logger        *slog.Logger
}

// New создаёт клиент книги.
// baseURL — корень values API (например, https://sheets.googleapis.com/v4/spreadsheets).
// spreadsheetID — обязательный идентификатор книги.
func New(baseURL, spreadsheetID string, timeout time.Duration, tokens TokenProvider, logger *slog.Logger) (*Client, error) {
	if spreadsheetID == "" {
		return nil, &apperr.ConfigError{Msg: "идентификатор книги не задан"}
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
		tokens:        tokens,
		logger:        logger.With(slog.String("component", "sheets_client")),
	}, nil
}

// GetValues читает диапазон. При чтении полного диапазона values[0] —
// строка заголовков. Пустой диапазон возвращается как nil.
// GET {base}/{id}/values/{range}
func (c *Client) GetValues(ctx context.Context, rng string) ([][]string, error) {
	reqURL := fmt.Sprintf("%s/%s/values/%s", c.baseURL, c.spreadsheetID, url.PathEscape(rng))

	body, err := c.do(ctx, http.MethodGet, reqURL, nil, "чтение диапазона "+rng)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Values [][]string `json:"values"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("декодирование values %s: %w", rng, err)
	}
	return resp.Values, nil
}

// AppendRow добавляет одну строку следующей строкой диапазона.
// POST {base}/{id}/values/{range}:append?valueInputOption=USER_ENTERED
func (c *Client) AppendRow(ctx context.Context, rng string, row []string) error {
	reqURL := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.baseURL, c.spreadsheetID, url.PathEscape(rng))

	payload := map[string][][]string{"values": {row}}
	_, err := c.do(ctx, http.MethodPost, reqURL, payload, "добавление строки в "+rng)
	return err
}

// UpdateRow заменяет строку по месту.
// PUT {base}/{id}/values/{range}?valueInputOption=USER_ENTERED
func (c *Client) UpdateRow(ctx context.Context, rng string, row []string) error {
	reqURL := fmt.Sprintf("%s/%s/values/%s?valueInputOption=USER_ENTERED",
		c.baseURL, c.spreadsheetID, url.PathEscape(rng))

	payload := map[string][][]string{"values": {row}}
	_, err := c.do(ctx, http.MethodPut, reqURL, payload, "запись строки в "+rng)
	return err
}

// SheetID возвращает внутренний числовой идентификатор листа по имени.
// Неизвестный лист — *apperr.SchemaError с перечислением доступных имён.
// GET {base}/{id}?fields=sheets.properties
func (c *Client) SheetID(ctx context.Context, name string) (int64, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=sheets.properties", c.baseURL, c.spreadsheetID)

	body, err := c.do(ctx, http.MethodGet, reqURL, nil, "чтение метаданных книги")
	if err != nil {
		return 0, err
	}

	var resp struct {
		Sheets []struct {
			Properties struct {
				SheetID int64  `json:"sheetId"`
				Title   string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("декодирование метаданных книги: %w", err)
	}

	available := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties.Title == name {
			return s.Properties.SheetID, nil
		}
		available = append(available, s.Properties.Title)
	}

	return 0, &apperr.SchemaError{Sheet: name, Available: available}
}

// DeleteRows удаляет строки листа через deleteDimension.
// Интервал [startIndex, endIndex) — полуоткрытый, 0-based, в координатах
// листа (заголовок занимает индекс 0).
// POST {base}/{id}:batchUpdate
func (c *Client) DeleteRows(ctx context.Context, sheetID int64, startIndex, endIndex int) error {
	reqURL := fmt.Sprintf("%s/%s:batchUpdate", c.baseURL, c.spreadsheetID)

	payload := map[string]any{
		"requests": []map[string]any{
			{
				"deleteDimension": map[string]any{
					"range": map[string]any{
						"sheetId":    sheetID,
						"dimension":  "ROWS",
						"startIndex": startIndex,
						"endIndex":   endIndex,
					},
				},
			},
		},
	}
	_, err := c.do(ctx, http.MethodPost, reqURL, payload, "удаление строк")
	return err
}

// do выполняет авторизованный запрос и возвращает тело успешного ответа.
// Любой не-2xx статус — *apperr.RemoteError со статусом и телом.
func (c *Client) do(ctx context.Context, method, reqURL string, payload any, op string) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: сериализация тела: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: получение токена: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: чтение ответа: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.RemoteError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
