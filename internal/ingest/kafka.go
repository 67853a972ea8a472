package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/service"

	"github.com/segmentio/kafka-go"
)

// KafkaEvents consumes action events from the platform event topic. Each
// message body is one ActionEvent in JSON. The ledger's idempotency key
// makes redelivery after a rebalance harmless.
type KafkaEvents struct {
	reader *kafka.Reader
	engine *service.Engine
}

func NewKafkaEvents(brokers []string, topic, groupID string, engine *service.Engine) *KafkaEvents {
	return &KafkaEvents{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		engine: engine,
	}
}

// Run consumes until the context is canceled. Malformed messages are
// logged and skipped; engine errors on a single event never stop the
// consumer.
func (k *KafkaEvents) Run(ctx context.Context) error {
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var ev domain.ActionEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn("kafka event unmarshal failed",
				"topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}

		if _, err := k.engine.SubmitActionEvent(ctx, &ev); err != nil {
			logger.Error("kafka event rejected",
				"action_type", ev.ActionType, "user_id", ev.UserID,
				"key", ev.IdempotencyKey, "error", err)
		}
	}
}

func (k *KafkaEvents) Close() {
	_ = k.reader.Close()
}
