// Package remote - клиент иерархического JSON-хранилища поверх REST.
// Каждый адрес коллекции или записи отображается на /<path>.json.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"go.uber.org/zap"
)

// TokenSource возвращает токен сессии для параметра auth. Пустая строка - без токена.
type TokenSource func() string

// Client выполняет чтение и запись по путям хранилища. Локального кэша нет.
type Client struct {
	base    *url.URL
	http    *http.Client
	log     *zap.Logger
	token   TokenSource
	breaker *BreakerSettings
}

// Option настраивает Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithBreaker оборачивает транспорт в circuit breaker. MaxFailures == 0 отключает его.
func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) { c.breaker = &s }
}

// New создает клиент для хранилища по адресу baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid store url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store url %q: scheme and host required", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker != nil && c.breaker.MaxFailures > 0 {
		hc := *c.http
		hc.Transport = NewBreakerTransport(hc.Transport, *c.breaker, c.log)
		c.http = &hc
	}
	return c, nil
}

// Path собирает относительный путь из сегментов, экранируя каждый сегмент.
// Сегмент с "/" остается одним сегментом и не меняет адрес.
func Path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return strings.Join(escaped, "/")
}

// === Operations ===

// Get читает запись по пути. JSON null дает ошибку вида KindNotFound.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return out, err
	}
	if isNull(body) {
		return out, domain.NewError(domain.KindNotFound, "get", path, nil)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, domain.NewError(domain.KindDecode, "get", path, err)
	}
	return out, nil
}

// GetCollection читает коллекцию как map[id]запись. Отсутствующая коллекция - пустая map.
func GetCollection[T any](ctx context.Context, c *Client, path string) (map[string]T, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T)
	if isNull(body) {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.NewError(domain.KindDecode, "get", path, err)
	}
	return out, nil
}

// PutFull заменяет запись целиком. Повторный вызов с тем же значением безопасен.
func (c *Client) PutFull(ctx context.Context, path string, record any) error {
	_, err := c.do(ctx, http.MethodPut, path, record)
	return err
}

// PatchFields обновляет только перечисленные поля. Атомарного инкремента нет.
func (c *Client) PatchFields(ctx context.Context, path string, fields map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, path, fields)
	return err
}

// PostAppend добавляет запись в коллекцию и возвращает ключ, выданный хранилищем.
func (c *Client) PostAppend(ctx context.Context, path string, record any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, path, record)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewError(domain.KindDecode, "post", path, err)
	}
	if resp.Name == "" {
		return "", domain.Errorf(domain.KindDecode, "post", path, "response without generated name")
	}
	return resp.Name, nil
}

// Delete удаляет запись.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// === Transport ===

func (c *Client) endpoint(path string) string {
	u := *c.base
	// path уже экранирован: кладем его в RawPath, чтобы %2F внутри сегмента не раскрылся
	raw := strings.TrimSuffix(c.base.EscapedPath(), "/") + "/" + strings.TrimSuffix(strings.Trim(path, "/"), ".json") + ".json"
	u.RawPath = raw
	if unescaped, err := url.PathUnescape(raw); err == nil {
		u.Path = unescaped
	} else {
		u.Path = raw
		u.RawPath = ""
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			q := u.Query()
			q.Set("auth", tok)
			u.RawQuery = q.Encode()
		}
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	op := strings.ToLower(method)

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, domain.NewError(domain.KindDecode, op, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, op, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("store request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, domain.NewError(domain.KindNetwork, op, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, op, path, err)
	}
	c.log.Debug("store request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, path, resp.StatusCode, data)
	}
	return data, nil
}

func statusError(op, path string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		msg = envelope.Error
	}
	kind := domain.KindNetwork
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.KindAuth
	case http.StatusNotFound:
		kind = domain.KindNotFound
	}
	return domain.Errorf(kind, op, path, "status %d: %s", status, msg)
}

func isNull(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
