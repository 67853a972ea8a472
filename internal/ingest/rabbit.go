package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/logger"
	"github.com/dinver-app/dinver-sub009/internal/service"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	triggerQueue = "referral-triggers"
	resultQueue  = "referral-results"
)

// ReferralTriggerMessage is what upstream services publish when a referred
// user hits a milestone.
type ReferralTriggerMessage struct {
	ReferrerID int64  `json:"referrer_id"`
	ReferredID int64  `json:"referred_id"`
	Trigger    string `json:"trigger"`
}

// ReferralResultMessage confirms processing back to the publisher.
type ReferralResultMessage struct {
	ReferrerID       int64  `json:"referrer_id"`
	ReferredID       int64  `json:"referred_id"`
	Trigger          string `json:"trigger"`
	ReferrerRewarded bool   `json:"referrer_rewarded"`
	ReferredRewarded bool   `json:"referred_rewarded"`
	Error            string `json:"error,omitempty"`
}

// RabbitReferrals consumes referral milestone messages and publishes a
// result per message. The flag flips inside ReferralService make
// redelivery safe.
type RabbitReferrals struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	chout     *amqp.Channel
	msgs      <-chan amqp.Delivery
	referrals *service.ReferralService
}

func NewRabbitReferrals(url string, referrals *service.ReferralService) (*RabbitReferrals, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(triggerQueue, false, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	chout, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := chout.QueueDeclare(resultQueue, false, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	msgs, err := ch.Consume(triggerQueue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitReferrals{conn: conn, ch: ch, chout: chout, msgs: msgs, referrals: referrals}, nil
}

// Run consumes until the context is canceled or the channel closes.
func (r *RabbitReferrals) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-r.msgs:
			if !ok {
				return nil
			}
			r.handle(ctx, d)
		}
	}
}

// handle acks a message only after its trigger has been processed and
// answered. Transient failures are nacked back onto the queue; the
// deterministic payout keys make the redelivery safe. Malformed bodies are
// acked away so a poison message cannot wedge the queue.
func (r *RabbitReferrals) handle(ctx context.Context, d amqp.Delivery) {
	var msg ReferralTriggerMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Warn("referral trigger unmarshal failed", "error", err)
		if err := d.Ack(false); err != nil {
			logger.Warn("referral trigger ack failed", "error", err)
		}
		return
	}

	out := ReferralResultMessage{
		ReferrerID: msg.ReferrerID,
		ReferredID: msg.ReferredID,
		Trigger:    msg.Trigger,
	}

	res, err := r.referrals.OnTrigger(ctx, msg.ReferrerID, msg.ReferredID, domain.ReferralTrigger(msg.Trigger))
	if err != nil {
		if shouldRequeue(err) {
			logger.Warn("referral trigger requeued",
				"referrer_id", msg.ReferrerID, "referred_id", msg.ReferredID,
				"trigger", msg.Trigger, "error", err)
			if err := d.Nack(false, true); err != nil {
				logger.Warn("referral trigger nack failed", "error", err)
			}
			return
		}
		out.Error = err.Error()
		logger.Error("referral trigger rejected",
			"referrer_id", msg.ReferrerID, "referred_id", msg.ReferredID,
			"trigger", msg.Trigger, "error", err)
	} else {
		out.ReferrerRewarded = res.ReferrerRewarded
		out.ReferredRewarded = res.ReferredRewarded
	}

	if err := r.publish(ctx, out); err != nil {
		logger.Warn("referral result publish failed", "error", err)
	}
	if err := d.Ack(false); err != nil {
		logger.Warn("referral trigger ack failed", "error", err)
	}
}

// shouldRequeue separates transient failures, which another delivery may
// succeed at, from permanent rejections that would fail identically forever.
func shouldRequeue(err error) bool {
	return errors.Is(err, domain.ErrEngineUnavailable) ||
		errors.Is(err, domain.ErrConcurrentModification)
}

func (r *RabbitReferrals) publish(ctx context.Context, out ReferralResultMessage) error {
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return r.chout.PublishWithContext(ctx,
		"", resultQueue, false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

func (r *RabbitReferrals) Close() {
	r.ch.Close()
	r.chout.Close()
	r.conn.Close()
}
