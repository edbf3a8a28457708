package models

import (
	"encoding/json"
	"time"
)

// StateSlot is one named cell of the engine's persistent state arena. Slot
// keys are a wire-compatibility contract: once a key family exists at a given
// position, every future logic version must keep it there and append new
// families after it.
type StateSlot struct {
	Key       string          `gorm:"column:slot_key;primaryKey"`
	Position  int64           `gorm:"column:position;not null;index"`
	Value     json.RawMessage `gorm:"column:value;type:jsonb;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName implements gorm's Tabler.
func (StateSlot) TableName() string {
	return "state_slots"
}
