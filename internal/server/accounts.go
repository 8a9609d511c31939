package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Коды ошибок в формате провайдера идентификации.
var (
	ErrEmailExists     = errors.New("EMAIL_EXISTS")
	ErrEmailNotFound   = errors.New("EMAIL_NOT_FOUND")
	ErrInvalidPassword = errors.New("INVALID_PASSWORD")
	ErrInvalidEmail    = errors.New("INVALID_EMAIL")
	ErrWeakPassword    = errors.New("WEAK_PASSWORD : Password should be at least 6 characters")
)

type account struct {
	LocalID      string
	Email        string
	PasswordHash []byte
}

// TokenClaims - содержимое idToken.
type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Accounts - учетные записи по email с bcrypt-хэшами паролей.
type Accounts struct {
	mu     sync.RWMutex
	byMail map[string]*account
	secret []byte
	ttl    time.Duration
}

// NewAccounts создает реестр учетных записей.
func NewAccounts(secret string, ttl time.Duration) *Accounts {
	if secret == "" {
		secret = uuid.NewString()
	}
	return &Accounts{
		byMail: make(map[string]*account),
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// SignUp регистрирует пользователя и возвращает localId.
func (a *Accounts) SignUp(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	if len(password) < 6 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byMail[email]; ok {
		return "", ErrEmailExists
	}
	acc := &account{
		LocalID:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:        email,
		PasswordHash: hash,
	}
	a.byMail[email] = acc
	return acc.LocalID, nil
}

// SignIn проверяет пароль и возвращает localId.
func (a *Accounts) SignIn(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	a.mu.RLock()
	acc, ok := a.byMail[email]
	a.mu.RUnlock()
	if !ok {
		return "", ErrEmailNotFound
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}
	return acc.LocalID, nil
}

// IssueToken подписывает idToken для localId.
func (a *Accounts) IssueToken(localID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   localID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// VerifyToken проверяет подпись и срок действия, возвращает localId.
func (a *Accounts) VerifyToken(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("missing token")
	}
	var claims TokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// === Handlers ===

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type credentialsResponse struct {
	Kind         string `json:"kind"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    string `json:"expiresIn,omitempty"`
	Registered   bool   `json:"registered,omitempty"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, "identitytoolkit#SignupNewUserResponse", s.accounts.SignUp)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, "identitytoolkit#VerifyPasswordResponse", s.accounts.SignIn)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, kind string, fn func(email, password string) (string, error)) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeIdentityError(w, errors.New("INVALID_JSON"))
		return
	}
	localID, err := fn(req.Email, req.Password)
	if err != nil {
		writeIdentityError(w, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	resp := credentialsResponse{
		Kind:       kind,
		LocalID:    localID,
		Email:      email,
		Registered: kind == "identitytoolkit#VerifyPasswordResponse",
	}
	if req.ReturnSecureToken {
		token, err := s.accounts.IssueToken(localID, email)
		if err != nil {
			s.internalError(w, fmt.Errorf("issue token: %w", err))
			return
		}
		resp.IDToken = token
		resp.RefreshToken = uuid.NewString()
		resp.ExpiresIn = strconv.Itoa(int(s.accounts.ttl.Seconds()))
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeIdentityError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		},
	})
}
