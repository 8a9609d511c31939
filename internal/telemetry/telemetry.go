// Package telemetry принимает ошибки, которые экраны скрывают от пользователя.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"go.uber.org/zap"
)

// Event описывает одну проглоченную ошибку.
type Event struct {
	Kind    domain.Kind `json:"kind"`
	Source  string      `json:"source"`
	Op      string      `json:"op,omitempty"`
	Path    string      `json:"path,omitempty"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Sink получает события. Реализации не должны блокировать вызывающего надолго.
type Sink interface {
	Report(ctx context.Context, ev Event)
}

// FromError строит событие из ошибки, сохраняя ее вид.
func FromError(source string, err error) Event {
	ev := Event{
		Kind:    domain.KindOf(err),
		Source:  source,
		Message: err.Error(),
		At:      time.Now().UTC(),
	}
	var de *domain.Error
	if errors.As(err, &de) {
		ev.Op = de.Op
		ev.Path = de.Path
	}
	return ev
}

// Nop отбрасывает события.
type Nop struct{}

func (Nop) Report(context.Context, Event) {}

// LogSink пишет события в zap.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Report(_ context.Context, ev Event) {
	s.Log.Warn("suppressed error",
		zap.String("kind", string(ev.Kind)),
		zap.String("source", ev.Source),
		zap.String("op", ev.Op),
		zap.String("path", ev.Path),
		zap.String("error", ev.Message),
	)
}

// Multi рассылает событие во все приемники.
type Multi []Sink

func (m Multi) Report(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Report(ctx, ev)
	}
}

// Recorder запоминает события. Используется в тестах.
type Recorder struct {
	events chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan Event, size)}
}

func (r *Recorder) Report(_ context.Context, ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

// Events возвращает накопленные события.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
