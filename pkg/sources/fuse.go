package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sudorandom/mobility-map/pkg/entity"
)

var errNullCollection = errors.New("null payload")

// featureList returns the raw records of a feature collection. Valid JSON
// without a "features" array yields no records. Invalid JSON and a bare
// null are errors.
func featureList(payload []byte) ([]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		if !json.Valid(payload) {
			return nil, fmt.Errorf("malformed feature collection: %w", err)
		}
		return nil, nil
	}
	if top == nil {
		return nil, fmt.Errorf("malformed feature collection: %w", errNullCollection)
	}

	var features []json.RawMessage
	if raw, ok := top["features"]; ok {
		if err := json.Unmarshal(raw, &features); err != nil {
			return nil, nil
		}
	}
	return features, nil
}

// FuseFeatures builds a snapshot from a single feature-collection payload.
// Each record becomes one entity; malformed records get fallback values
// rather than failing the snapshot.
func FuseFeatures(payload []byte, at time.Time) (*entity.Snapshot, error) {
	features, err := featureList(payload)
	if err != nil {
		return nil, err
	}

	snap := entity.NewSnapshot(at, len(features))
	for i, raw := range features {
		snap.Add(entity.Extract(raw, i))
	}
	return snap, nil
}
