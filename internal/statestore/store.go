package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clearledger/subpay/pkg/db/models"
)

// Store is the persistent slot arena. Values are opaque JSON documents; all
// reads and writes by every logic version go through it.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
}

type store struct {
	db *gorm.DB
}

// New returns a slot store bound to the provided database.
func New(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return s
	}
	return &store{db: tx}
}

func (s *store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var slot models.StateSlot
	err := s.db.WithContext(ctx).
		Where("slot_key = ?", key).
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return slot.Value, true, nil
}

func (s *store) Put(ctx context.Context, key string, value json.RawMessage) error {
	position, ok := familyPosition(key)
	if !ok {
		return fmt.Errorf("slot key %q does not belong to a declared family", key)
	}
	slot := models.StateSlot{
		Key:      key,
		Position: position,
		Value:    value,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot_key"}},
			UpdateAll: true,
		}).
		Create(&slot).Error
}
