// Пакет auth — получение и кэширование bearer-токенов сервисного аккаунта.
// Строит подписанный RS256 assertion и обменивает его на короткоживущий
// токен через JWT-bearer grant.
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/globecontacts/data-module/internal/domain/apperr"
)

const (
	// grantJWTBearer — grant type обмена assertion на токен.
	grantJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// assertionLifetime — срок действия assertion (exp = iat + 1h).
	assertionLifetime = time.Hour
	// refreshMargin — токен считается истекающим за 60 секунд до expiry
	// и заменяется новым. Замена, не мутация: кэшированное значение
	// перезаписывается целиком.
	refreshMargin = 60 * time.Second
)

// Credential — идентичность сервисного аккаунта.
// Загружается один раз при старте, неизменна на время жизни процесса.
type Credential struct {
	// ClientEmail — principal сервисного аккаунта (claim iss).
	ClientEmail string `json:"client_email"`
	// PrivateKey — приватный ключ подписи в PEM.
	PrivateKey string `json:"private_key"`
	// TokenURI — token endpoint (claim aud и адрес обмена).
	TokenURI string `json:"token_uri"`
}

// LoadCredential читает JSON сервисного аккаунта с диска.
// Отсутствие файла или неполные поля — ошибка конфигурации.
func LoadCredential(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.ConfigError{Msg: fmt.Sprintf("чтение credentials %s: %v", path, err)}
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, &apperr.ConfigError{Msg: fmt.Sprintf("разбор credentials %s: %v", path, err)}
	}
	if cred.ClientEmail == "" || cred.PrivateKey == "" || cred.TokenURI == "" {
		return nil, &apperr.ConfigError{Msg: "credentials неполны: требуются client_email, private_key, token_uri"}
	}

	return &cred, nil
}

// cachedToken — закэшированный bearer-токен с абсолютным временем истечения.
type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// Manager — менеджер токенов сервисного аккаунта.
// Каждый экземпляр владеет собственным кэшем; внешних путей мутации нет.
type Manager struct {
	httpClient *http.Client
	cred       *Credential
	key        *rsa.PrivateKey
	scope      string
	logger     *slog.Logger

	// Кэш токена (thread-safe)
	mu    sync.RWMutex
	token *cachedToken
}

// NewManager создаёт менеджер токенов.
// scope — OAuth2 scope, включаемый в claims assertion.
// timeout — таймаут HTTP-запросов к token endpoint.
func NewManager(cred *Credential, scope string, timeout time.Duration, logger *slog.Logger) (*Manager, error) {
	key, err := parsePrivateKey(cred.PrivateKey)
	if err != nil {
		return nil, &apperr.AuthError{Op: "разбор приватного ключа", Err: err}
	}

	return &Manager{
		httpClient: &http.Client{Timeout: timeout},
		cred:       cred,
		key:        key,
		scope:      scope,
		logger:     logger.With(slog.String("component", "token_manager")),
	}, nil
}

// GetAccessToken возвращает действующий bearer-токен.
// Пока у кэшированного токена остаётся более 60 секунд валидности,
// возвращается кэш без сетевого вызова. Иначе — новый обмен assertion.
// Ошибки не ретраятся автоматически.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	// Проверяем кэш (read lock)
	m.mu.RLock()
	if m.token != nil && time.Until(m.token.expiresAt) > refreshMargin {
		token := m.token.accessToken
		m.mu.RUnlock()
		return token, nil
	}
	m.mu.RUnlock()

	// Запрашиваем новый токен (write lock)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check после получения write lock
	if m.token != nil && time.Until(m.token.expiresAt) > refreshMargin {
		return m.token.accessToken, nil
	}

	return m.requestToken(ctx)
}

// requestToken строит assertion и обменивает его на токен.
// Вызывается под write lock.
func (m *Manager) requestToken(ctx context.Context) (string, error) {
	assertion, err := m.buildAssertion(time.Now())
	if err != nil {
		return "", &apperr.AuthError{Op: "подпись assertion", Err: err}
	}

	data := url.Values{
		"grant_type": {grantJWTBearer},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cred.TokenURI, strings.NewReader(data.Encode()))
	if err != nil {
		return "", &apperr.AuthError{Op: "создание запроса token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", &apperr.AuthError{Op: "запрос token endpoint", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &apperr.AuthError{Op: "обмен assertion", Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &apperr.AuthError{Op: "декодирование token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return "", &apperr.AuthError{Op: "обмен assertion", Body: "пустой access_token в ответе"}
	}

	m.token = &cachedToken{
		accessToken: tokenResp.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	m.logger.Debug("токен сервисного аккаунта получен",
		slog.Int("expires_in", tokenResp.ExpiresIn),
	)

	return tokenResp.AccessToken, nil
}

// buildAssertion подписывает RS256 JWT с claims сервисного аккаунта:
// iss, scope, aud (token endpoint), iat, exp = iat + 1h.
func (m *Manager) buildAssertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   m.cred.ClientEmail,
		"scope": m.scope,
		"aud":   m.cred.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("подпись RS256: %w", err)
	}
	return signed, nil
}

// parsePrivateKey разбирает PEM-блок приватного ключа (PKCS#8 или PKCS#1).
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("PEM-блок не найден")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("ключ не RSA")
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("разбор ключа: %w", err)
	}
	return key, nil
}
