package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/keymint-labs/keymint-backend/pkg/enums"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/outbox"
	"github.com/keymint-labs/keymint-backend/pkg/outbox/idempotency"
	"github.com/keymint-labs/keymint-backend/pkg/outbox/payloads"
)

const licenseMailConsumer = "license-mailer"

// Consumer watches domain events and mails freshly minted license keys
// to their buyers. Delivery is at-least-once; the idempotency manager
// keeps redeliveries from mailing the same key twice.
type Consumer struct {
	sender       Sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a license mail consumer.
func NewConsumer(sender Sender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventLicenseCreated) {
		c.logg.Info(logCtx, "skipping event without mail side effect")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, licenseMailConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.LicenseCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, licenseMailConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"license_id":  payload.LicenseID.String(),
		"plugin_slug": payload.PluginSlug,
	})

	if payload.Email == "" {
		// Processor sessions without a purchaser address have nowhere
		// to deliver the key.
		c.logg.Warn(logCtx, "license has no purchaser email, skipping mail")
		return processResult{ack: true}
	}

	err = c.sender.SendLicenseKey(ctx, LicenseKeyMessage{
		To:         payload.Email,
		PluginName: payload.PluginName,
		LicenseKey: payload.LicenseKey,
	})
	if err != nil {
		c.logg.Error(logCtx, "license mail failed", err)
		_ = c.idempotency.Delete(ctx, licenseMailConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "license key mailed")
	return processResult{ack: true}
}
