// Package auth - вход и регистрация через REST провайдера идентификации (email/пароль).
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"github.com/UkralStul/nexus-sync/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// DefaultBaseURL - адрес REST API провайдера идентификации.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com/v1/accounts"

// Client регистрирует и авторизует пользователей, сохраняя сессию в session.Manager.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	store    *remote.Client
	sessions *session.Manager
	log      *zap.Logger
	now      func() time.Time
}

// New создает клиент. store используется для создания профиля при регистрации.
func New(baseURL, apiKey string, store *remote.Client, sessions *session.Manager, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		store:    store,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

type credentials struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenResponse struct {
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	IDToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
}

// SignUp регистрирует пользователя, создает профиль /users/{uid} и открывает сессию.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (string, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)
	if username == "" {
		return "", domain.Errorf(domain.KindAuth, "signUp", "", "username is required")
	}

	resp, err := c.call(ctx, "signUp", credentials{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return "", err
	}
	if err := c.openSession(ctx, resp); err != nil {
		return "", err
	}

	user := domain.User{
		ID:        resp.LocalID,
		Username:  username,
		Email:     email,
		CreatedAt: c.now().UnixMilli(),
	}
	if err := c.store.PutFull(ctx, remote.Path("users", resp.LocalID), user); err != nil {
		// Без профиля сессия бесполезна: пользователь войдет снова через SignIn
		if clearErr := c.sessions.Clear(ctx); clearErr != nil {
			c.log.Warn("clear session after failed sign up", zap.Error(clearErr))
		}
		return "", fmt.Errorf("create profile: %w", err)
	}
	c.log.Info("signed up", zap.String("user_id", resp.LocalID))
	return resp.LocalID, nil
}

// SignIn проверяет email/пароль и открывает сессию.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	resp, err := c.call(ctx, "signInWithPassword", credentials{Email: NormalizeEmail(email), Password: password, ReturnSecureToken: true})
	if err != nil {
		return "", err
	}
	if err := c.openSession(ctx, resp); err != nil {
		return "", err
	}
	c.log.Info("signed in", zap.String("user_id", resp.LocalID))
	return resp.LocalID, nil
}

// Logout удаляет сохраненную сессию.
func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.Clear(ctx)
}

// CurrentUserID возвращает id вошедшего пользователя или пустую строку.
func (c *Client) CurrentUserID() string {
	return c.sessions.UserID()
}

// NormalizeEmail приводит адрес к виду для хранения и сравнения.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func (c *Client) openSession(ctx context.Context, resp *tokenResponse) error {
	s := session.Session{
		UserID:    resp.LocalID,
		Token:     resp.IDToken,
		ExpiresAt: c.tokenExpiry(resp),
	}
	if err := c.sessions.Set(ctx, s); err != nil {
		return err
	}
	return nil
}

// tokenExpiry берет exp из idToken. Подпись не проверяется: токен пришел от провайдера.
func (c *Client) tokenExpiry(resp *tokenResponse) time.Time {
	if resp.IDToken != "" {
		var claims jwt.RegisteredClaims
		if _, _, err := jwt.NewParser().ParseUnverified(resp.IDToken, &claims); err == nil && claims.ExpiresAt != nil {
			return claims.ExpiresAt.Time
		}
	}
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil && secs > 0 {
		return c.now().Add(time.Duration(secs) * time.Second)
	}
	return time.Time{}
}

func (c *Client) call(ctx context.Context, method string, body credentials) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + ":" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, method, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, method, "", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, method, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			msg = envelope.Error.Message
		}
		if resp.StatusCode >= 500 {
			return nil, domain.Errorf(domain.KindNetwork, method, "", "status %d: %s", resp.StatusCode, msg)
		}
		return nil, domain.Errorf(domain.KindAuth, method, "", "%s", msg)
	}

	var out tokenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.KindDecode, method, "", err)
	}
	if out.LocalID == "" {
		return nil, domain.Errorf(domain.KindDecode, method, "", "response without localId")
	}
	return &out, nil
}
