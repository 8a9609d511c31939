package telemetry

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSink публикует события в топик Kafka асинхронно.
type KafkaSink struct {
	writer *kafkago.Writer
	log    *zap.Logger
}

// NewKafkaSink создает приемник для brokers/topic.
func NewKafkaSink(brokers []string, topic string, log *zap.Logger) *KafkaSink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		BatchTimeout: 500 * time.Millisecond,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				log.Debug("telemetry publish failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaSink{writer: w, log: log}
}

func (s *KafkaSink) Report(ctx context.Context, ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.log.Debug("telemetry encode failed", zap.Error(err))
		return
	}
	msg := kafkago.Message{
		Key:   []byte(ev.Kind),
		Value: b,
		Time:  ev.At,
	}
	// Async-писатель не блокирует: ошибки приходят в Completion
	if err := s.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		s.log.Debug("telemetry enqueue failed", zap.Error(err))
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
