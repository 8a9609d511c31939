package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings - параметры circuit breaker для запросов к хранилищу.
type BreakerSettings struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

type breakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker
	log  *zap.Logger
}

// NewBreakerTransport считает сетевые ошибки и ответы 5xx неудачами.
// После MaxFailures подряд запросы отклоняются до истечения Timeout.
func NewBreakerTransport(next http.RoundTripper, s BreakerSettings, log *zap.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	st := gobreaker.Settings{
		Name:        "remote-store",
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		// Закрытие экрана отменяет контекст и не должно размыкать breaker
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return breakerTransport{next: next, cb: gobreaker.NewCircuitBreaker(st), log: log}
}

func (rt breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		rt.log.Debug("breaker transport error", zap.Error(err))
		return nil, err
	}
	if r, ok := res.(*http.Response); ok {
		return r, nil
	}
	return nil, errors.New("invalid roundtrip result")
}
