// Package poll держит список на экране примерно свежим без канала push-уведомлений:
// раз в интервал перечитывает коллекцию и заменяет показанный список, если он изменился.
package poll

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval - период опроса.
const DefaultInterval = 2 * time.Second

var ErrAlreadyRunning = errors.New("poller is already running")

// Poller периодически вызывает Fetch и сверяет результат с показанным списком.
// Ошибка Fetch не меняет список: цикл просто ждет следующего тика.
type Poller[T any] struct {
	// Fetch возвращает коллекцию, уже упорядоченную по времени.
	Fetch func(ctx context.Context) ([]T, error)
	// Equal сравнивает показанный и новый списки. По умолчанию StructuralEqual.
	Equal func(displayed, fresh []T) bool
	// OnChange вызывается после замены списка.
	OnChange func(items []T)
	// OnScrollToEnd вызывается один раз на каждое изменение непустого списка.
	OnScrollToEnd func(last int)
	// OnError получает ошибки Fetch, кроме отмены контекста.
	OnError func(err error)

	Interval time.Duration
	// Ticks заменяет внутренний таймер (тесты).
	Ticks <-chan time.Time

	mu        sync.RWMutex
	displayed []T
	running   atomic.Bool
	// ticking держится на время одного цикла Tick
	ticking sync.Mutex
}

// LengthEqual считает списки равными при равной длине.
func LengthEqual[T any](a, b []T) bool {
	return len(a) == len(b)
}

// StructuralEqual сравнивает списки поэлементно.
func StructuralEqual[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Run опрашивает до отмены ctx и возвращает ctx.Err().
// Первый запрос выполняется сразу. Запросы никогда не перекрываются:
// тики, пришедшие во время запроса, пропускаются.
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.Fetch == nil {
		return errors.New("poller without fetch")
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	ticks := p.Ticks
	if ticks == nil {
		interval := p.Interval
		if interval <= 0 {
			interval = DefaultInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Tick(ctx)
		}
	}
}

// Tick выполняет один цикл чтения и сверки. Возвращает true, если список заменен.
// Если другой цикл еще идет (например, Run), Tick ничего не делает и возвращает false.
func (p *Poller[T]) Tick(ctx context.Context) bool {
	if !p.ticking.TryLock() {
		return false
	}
	defer p.ticking.Unlock()

	fresh, err := p.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil && p.OnError != nil {
			p.OnError(err)
		}
		return false
	}
	if fresh == nil {
		fresh = []T{}
	}

	equal := p.Equal
	if equal == nil {
		equal = StructuralEqual[T]
	}

	p.mu.Lock()
	if p.displayed != nil && equal(p.displayed, fresh) {
		p.mu.Unlock()
		return false
	}
	p.displayed = fresh
	p.mu.Unlock()

	if p.OnChange != nil {
		p.OnChange(fresh)
	}
	if len(fresh) > 0 && p.OnScrollToEnd != nil {
		p.OnScrollToEnd(len(fresh) - 1)
	}
	return true
}

// Snapshot возвращает копию показанного списка.
func (p *Poller[T]) Snapshot() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]T, len(p.displayed))
	copy(out, p.displayed)
	return out
}

// Reset забывает показанный список: следующий успешный запрос будет считаться изменением.
func (p *Poller[T]) Reset() {
	p.mu.Lock()
	p.displayed = nil
	p.mu.Unlock()
}
