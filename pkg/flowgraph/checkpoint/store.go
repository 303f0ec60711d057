// Package checkpoint records what each stage of a run published.
//
// A checkpoint holds the shared keys one writer owns once that writer has
// finished: the caller's seeded inputs first, then each node in order.
// The records let an operator inspect the intermediate outputs of a run
// after the process has exited.
package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the current checkpoint format version.
const Version = 1

// Store persists checkpoints.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores cp, replacing any checkpoint for (cp.RunID, cp.NodeID).
	Save(cp Checkpoint) error

	// Load retrieves one checkpoint or returns ErrNotFound.
	Load(runID, nodeID string) (Checkpoint, error)

	// List returns the checkpoints of a run ordered by sequence.
	// An unknown run yields an empty slice.
	List(runID string) ([]Info, error)

	// Runs summarizes every stored run, oldest first.
	Runs() ([]Run, error)

	// DeleteRun removes all checkpoints for a run.
	DeleteRun(runID string) error

	Close() error
}

// Checkpoint is the record of one writer in one run.
type Checkpoint struct {
	Version   int       `yaml:"version"`
	RunID     string    `yaml:"run_id"`
	Pipeline  string    `yaml:"pipeline,omitempty"`
	NodeID    string    `yaml:"node_id"`
	Sequence  int       `yaml:"sequence"`
	Attempts  int       `yaml:"attempts,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
	// Outputs maps shared key names to their values. After a Load the
	// values are generic YAML data, not the original Go types.
	Outputs map[string]any `yaml:"outputs"`
}

// Info describes a checkpoint without its outputs.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Attempts  int
	Timestamp time.Time
	Size      int64
}

// Run summarizes the checkpoints stored for one run.
type Run struct {
	RunID    string
	Pipeline string
	Started  time.Time
	Stages   int
}

var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)

// Marshal encodes cp as YAML.
func (c Checkpoint) Marshal() ([]byte, error) {
	if c.Version == 0 {
		c.Version = Version
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint %s/%s: %w", c.RunID, c.NodeID, err)
	}
	return data, nil
}

// Unmarshal decodes a checkpoint written by Marshal.
func Unmarshal(data []byte) (Checkpoint, error) {
	var c Checkpoint
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if c.Version > Version {
		return Checkpoint{}, fmt.Errorf("decode checkpoint: version %d is newer than %d", c.Version, Version)
	}
	return c, nil
}

func (c Checkpoint) info(size int) Info {
	return Info{
		RunID:     c.RunID,
		NodeID:    c.NodeID,
		Sequence:  c.Sequence,
		Attempts:  c.Attempts,
		Timestamp: c.Timestamp,
		Size:      int64(size),
	}
}
