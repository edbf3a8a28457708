package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearledger/subpay/pkg/db/models"
	"github.com/clearledger/subpay/pkg/enums"
)

// Emitter records observable state transitions. Events are append-only and
// written in the same transaction as the transition they describe; they are
// the engine's only observability surface for successful mutations.
type Emitter interface {
	WithTx(tx *gorm.DB) Emitter
	Emit(ctx context.Context, eventType enums.BillingEventType, aggregateKey string, payload any) (*models.BillingEvent, error)
	ListByAggregate(ctx context.Context, aggregateKey string) ([]models.BillingEvent, error)
}

type emitter struct {
	db *gorm.DB
}

// NewEmitter wires an event emitter backed by the provided database.
func NewEmitter(db *gorm.DB) (Emitter, error) {
	if db == nil {
		return nil, fmt.Errorf("event emitter requires a database")
	}
	return &emitter{db: db}, nil
}

func (e *emitter) WithTx(tx *gorm.DB) Emitter {
	if tx == nil {
		return e
	}
	return &emitter{db: tx}
}

func (e *emitter) Emit(ctx context.Context, eventType enums.BillingEventType, aggregateKey string, payload any) (*models.BillingEvent, error) {
	if !eventType.IsValid() {
		return nil, fmt.Errorf("invalid billing event type %q", eventType)
	}
	if aggregateKey == "" {
		return nil, fmt.Errorf("aggregate key is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding event payload: %w", err)
	}

	event := &models.BillingEvent{
		ID:           uuid.New(),
		EventType:    eventType,
		AggregateKey: aggregateKey,
		Payload:      raw,
	}
	if err := e.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (e *emitter) ListByAggregate(ctx context.Context, aggregateKey string) ([]models.BillingEvent, error) {
	var events []models.BillingEvent
	if err := e.db.WithContext(ctx).
		Where("aggregate_key = ?", aggregateKey).
		Order("emitted_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
