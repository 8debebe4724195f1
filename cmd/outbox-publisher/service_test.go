package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/keymint-labs/keymint-backend/pkg/config"
	"github.com/keymint-labs/keymint-backend/pkg/db/models"
	"github.com/keymint-labs/keymint-backend/pkg/enums"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/outbox"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	events := f.events
	f.events = nil
	return events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakePublishResult{}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error {
	return nil
}

func mustEnvelopePayload(t *testing.T, eventID string) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"license_key":"KM-TEST"}`),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	cfg := &config.Config{}
	cfg.Outbox.PublishTimeout = time.Second
	service, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logg,
		DB:        okPinger{},
		PubSub:    okPinger{},
		Repo:      repo,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func licenseCreatedRow(t *testing.T, eventID string) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventLicenseCreated,
		AggregateType: enums.AggregateLicense,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, eventID),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := licenseCreatedRow(t, "event-one")
	second := licenseCreatedRow(t, "event-two")
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
}

func TestProcessBatchSetsMessageAttributes(t *testing.T) {
	row := licenseCreatedRow(t, "event-attrs")
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one published message got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_id"] != "event-attrs" {
		t.Fatalf("unexpected event_id attribute %q", attrs["event_id"])
	}
	if attrs["event_type"] != string(enums.EventLicenseCreated) {
		t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
	}
	if attrs["aggregate_type"] != string(enums.AggregateLicense) {
		t.Fatalf("unexpected aggregate_type attribute %q", attrs["aggregate_type"])
	}
	if attrs["aggregate_id"] != row.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", attrs["aggregate_id"])
	}
}

func TestProcessBatchMarksMalformedPayloadFailed(t *testing.T) {
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventLicenseCreated,
		AggregateType: enums.AggregateLicense,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`not-json`),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("expected no publish for malformed payload")
	}
	if len(repo.failed) != 1 || repo.failed[0] != row.ID {
		t.Fatalf("expected malformed row marked failed, got %v", repo.failed)
	}
}

func TestProcessBatchIdlesWhenEmpty(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 500 * time.Millisecond
	current := base
	for i := 0; i < 10; i++ {
		current = nextBackoff(current, base, maxBackoff)
	}
	if current != maxBackoff {
		t.Fatalf("expected backoff capped at %v got %v", maxBackoff, current)
	}
}
