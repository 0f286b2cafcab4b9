package store

import (
	"context"
	"encoding/json"
	"fmt"

	"noesis/internal/types"
)

// SaveJSON marshals a learned-state value and stores it as the engine's
// snapshot.
func SaveJSON(ctx context.Context, sp types.SnapshotPersistence, engine string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s state: %w", engine, err)
	}
	return sp.SaveSnapshot(ctx, engine, payload)
}

// LoadJSON loads and unmarshals the engine's snapshot into out. Returns
// false without error when no snapshot exists.
func LoadJSON(ctx context.Context, sp types.SnapshotPersistence, engine string, out interface{}) (bool, error) {
	payload, err := sp.LoadSnapshot(ctx, engine)
	if err != nil {
		return false, err
	}
	if payload == nil {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("unmarshal %s state: %w", engine, err)
	}
	return true, nil
}
