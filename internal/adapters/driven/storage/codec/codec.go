// Package codec encodes checkpoints and fetch results for the storage adapters.
// Decoding validates checkpoint invariants so a corrupt record is reported
// as domain.ErrCheckpointCorrupt rather than loaded.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// EncodeCheckpoint marshals a checkpoint.
func EncodeCheckpoint(cp *domain.Checkpoint) ([]byte, error) {
	if err := cp.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid checkpoint: %w", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint unmarshals and validates a checkpoint.
func DecodeCheckpoint(data []byte) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckpointCorrupt, err)
	}
	if cp.Completed == nil {
		cp.Completed = make(map[string]domain.FetchStatus)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// EncodeResult marshals a fetch result on a single line.
func EncodeResult(r domain.FetchResult) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshalling result %s: %w", r.Item.Key(), err)
	}
	return data, nil
}

// DecodeResult unmarshals a fetch result.
func DecodeResult(data []byte) (domain.FetchResult, error) {
	var r domain.FetchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.FetchResult{}, fmt.Errorf("unmarshalling result: %w", err)
	}
	return r, nil
}

// Clone deep-copies a checkpoint.
func Clone(cp *domain.Checkpoint) *domain.Checkpoint {
	out := *cp
	out.Sources = append([]domain.SourceKind(nil), cp.Sources...)
	out.Pending = append([]string(nil), cp.Pending...)
	out.Completed = make(map[string]domain.FetchStatus, len(cp.Completed))
	for k, v := range cp.Completed {
		out.Completed[k] = v
	}
	return &out
}
