// Package server - локальная замена облачного хранилища и провайдера идентификации
// для разработки и тестов. Семантика путей и ответов повторяет REST-интерфейс хранилища.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/UkralStul/nexus-sync/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

// Config - параметры dev-сервера.
type Config struct {
	// JWTSecret подписывает idToken. Пустой секрет запрещен при RequireAuth.
	JWTSecret     string
	TokenTTL      time.Duration
	RequireAuth   bool
	RatePerMinute int
	Burst         int
}

// Server обслуживает дерево хранилища и учетные записи.
type Server struct {
	store    storage.Storage
	accounts *Accounts
	limiter  *LimiterStore
	cfg      Config
	log      *zap.Logger
}

// New создает сервер поверх store.
func New(store storage.Storage, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	s := &Server{
		store:    store,
		accounts: NewAccounts(cfg.JWTSecret, cfg.TokenTTL),
		cfg:      cfg,
		log:      log,
	}
	if cfg.RatePerMinute > 0 {
		s.limiter = NewLimiterStore(cfg.RatePerMinute, cfg.Burst, time.Minute)
	}
	return s
}

// Close останавливает фоновые горутины.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Router собирает chi-маршрутизатор.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Post("/v1/accounts:signUp", s.handleSignUp)
	r.Post("/v1/accounts:signInWithPassword", s.handleSignIn)

	r.Group(func(r chi.Router) {
		r.Use(s.requireJSONPath)
		if s.cfg.RequireAuth {
			r.Use(s.requireToken)
		}
		r.Get("/*", s.handleGet)
		r.Put("/*", s.handlePut)
		r.Patch("/*", s.handlePatch)
		r.Post("/*", s.handlePost)
		r.Delete("/*", s.handleDelete)
	})
	return r
}

// === Store Handlers ===

func (s *Server) requireJSONPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".json") {
			writeStoreError(w, http.StatusNotFound, "path must end with .json")
			return
		}
		path, err := storage.ParseEscapedPath(r.URL.EscapedPath())
		if err != nil {
			writeStoreError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withPath(r.Context(), path)))
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.accounts.VerifyToken(r.URL.Query().Get("auth")); err != nil {
			writeStoreError(w, http.StatusUnauthorized, "Permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.Get(r.Context(), pathFrom(r.Context()))
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	v, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.store.Set(r.Context(), pathFrom(r.Context()), v); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	v, ok := s.readBody(w, r)
	if !ok {
		return
	}
	fields, isObject := v.(map[string]any)
	if !isObject {
		writeStoreError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object.")
		return
	}
	if err := s.store.Update(r.Context(), pathFrom(r.Context()), fields); err != nil {
		writeStoreError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	v, ok := s.readBody(w, r)
	if !ok {
		return
	}
	id, err := s.store.Push(r.Context(), pathFrom(r.Context()), v)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), pathFrom(r.Context())); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeStoreError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return nil, false
		}
		writeStoreError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	v, err := storage.DecodeJSON(data)
	if err != nil {
		writeStoreError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object, array, or value.")
		return nil, false
	}
	return v, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("storage error", zap.Error(err))
	writeStoreError(w, http.StatusInternalServerError, "internal error")
}

// === Helpers ===

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStoreError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
