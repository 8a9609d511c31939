// Package screen связывает опрос (poll.Poller) с репозиторием для экранов клиента.
// Здесь ошибки хранилища перестают быть ошибками: экран оставляет прежний список,
// а причина уходит в telemetry.Sink.
package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/UkralStul/nexus-sync/internal/poll"
	"github.com/UkralStul/nexus-sync/internal/telemetry"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("screen is not started")

// Options - общие настройки экранов.
type Options struct {
	Interval time.Duration
	// Ticks заменяет таймер опроса (тесты).
	Ticks <-chan time.Time
	Sink  telemetry.Sink
	Log   *zap.Logger
	// OnScrollToEnd вызывается один раз на каждое изменение непустого списка.
	OnScrollToEnd func(last int)
}

func (o Options) withDefaults() Options {
	if o.Sink == nil {
		o.Sink = telemetry.Nop{}
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// loop владеет одним Poller и жизненным циклом его горутины.
type loop[T any] struct {
	source string
	poller *poll.Poller[T]
	log    *zap.Logger

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newLoop[T any](source string, fetch func(context.Context) ([]T, error), opts Options, onChange func([]T)) *loop[T] {
	opts = opts.withDefaults()
	l := &loop[T]{source: source, log: opts.Log.With(zap.String("screen", source))}
	sink := opts.Sink
	l.poller = &poll.Poller[T]{
		Fetch:         fetch,
		OnChange:      onChange,
		OnScrollToEnd: opts.OnScrollToEnd,
		Interval:      opts.Interval,
		Ticks:         opts.Ticks,
		OnError: func(err error) {
			l.log.Debug("refresh failed, keeping previous list", zap.Error(err))
			sink.Report(context.Background(), telemetry.FromError(source, err))
		},
	}
	return l
}

// start запускает опрос, привязанный к ctx. Пока опрос идет, повторный вызов ничего не делает.
func (l *loop[T]) start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	l.parent = ctx
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done

	go func() {
		defer close(done)
		err := l.poller.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			l.log.Error("poll loop stopped", zap.Error(err))
		}

		// Родительский контекст мог закончиться без stop: следующий start должен запустить опрос заново
		l.mu.Lock()
		if l.done == done {
			l.cancel, l.done = nil, nil
		}
		l.mu.Unlock()
		cancel()
	}()
}

// stop останавливает опрос и ждет завершения текущего запроса.
func (l *loop[T]) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// refresh перезапускает опрос: список читается сразу и считается новым.
func (l *loop[T]) refresh() error {
	l.mu.Lock()
	parent := l.parent
	running := l.cancel != nil
	l.mu.Unlock()
	if !running {
		return ErrNotStarted
	}

	l.stop()
	l.poller.Reset()
	l.start(parent)
	return nil
}
