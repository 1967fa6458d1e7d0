// snapshots.go - Pool snapshot file loading
//
// The snapshot file stands in for a live chain client: a JSON document
// holding the current height and the raw register bytes of every pool box,
// as an indexer would export them. All register payloads are hex.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"poolcore/internal/pool"
)

type snapshotEntry struct {
	PoolID         string `json:"pool_id"`
	R4             string `json:"r4"`
	R5             string `json:"r5"`
	R6             string `json:"r6"`
	R7             string `json:"r7"`
	TokenBalance   int64  `json:"token_balance"`
	CreationHeight int64  `json:"creation_height"`
}

type snapshotFile struct {
	CurrentHeight int64           `json:"current_height"`
	Pools         []snapshotEntry `json:"pools"`
}

// loadSnapshots reads and parses every pool in the snapshot file. A pool
// that fails validation poisons the whole load; a partial view of the
// pool set is worse than none.
func loadSnapshots(path string) ([]*pool.Snapshot, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, 0, fmt.Errorf("failed to decode snapshot file: %w", err)
	}

	snapshots := make([]*pool.Snapshot, 0, len(file.Pools))
	for _, entry := range file.Pools {
		raw, err := entry.toRaw()
		if err != nil {
			return nil, 0, fmt.Errorf("pool %s: %w", entry.PoolID, err)
		}
		s, err := pool.ParseSnapshot(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("pool %s: %w", entry.PoolID, err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, file.CurrentHeight, nil
}

func (e snapshotEntry) toRaw() (pool.RawSnapshot, error) {
	raw := pool.RawSnapshot{
		PoolID:         e.PoolID,
		TokenBalance:   e.TokenBalance,
		CreationHeight: e.CreationHeight,
	}
	var err error
	if raw.R4, err = hex.DecodeString(e.R4); err != nil {
		return raw, fmt.Errorf("register R4 is not hex: %w", err)
	}
	if raw.R5, err = hex.DecodeString(e.R5); err != nil {
		return raw, fmt.Errorf("register R5 is not hex: %w", err)
	}
	if raw.R6, err = hex.DecodeString(e.R6); err != nil {
		return raw, fmt.Errorf("register R6 is not hex: %w", err)
	}
	if raw.R7, err = hex.DecodeString(e.R7); err != nil {
		return raw, fmt.Errorf("register R7 is not hex: %w", err)
	}
	return raw, nil
}

func findPool(snapshots []*pool.Snapshot, poolID string) (*pool.Snapshot, error) {
	for _, s := range snapshots {
		if s.PoolID == poolID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("pool %s not found in snapshot file", poolID)
}
