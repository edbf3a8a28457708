package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/subpay/pkg/enums"
)

// BillingEvent is an append-only record of a successful state transition,
// written in the same transaction as the transition itself.
type BillingEvent struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	EventType    enums.BillingEventType `gorm:"column:event_type;not null;index"`
	AggregateKey string                 `gorm:"column:aggregate_key;not null;index"`
	Payload      json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	EmittedAt    time.Time              `gorm:"column:emitted_at;autoCreateTime"`
}

// TableName implements gorm's Tabler.
func (BillingEvent) TableName() string {
	return "billing_events"
}
