// Package snapshot periodically serializes the whole in-memory state
// to a single JSON document and restores it on startup. Ground: the
// persist()/load() pair of the retrieved subagent registry (write to
// "<path>.tmp", then os.Rename over the canonical path so a reader
// never observes a partial file; 0600 permissions), generalized from
// one registry's records to every store/task/channel table this
// process owns.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hivemindhq/hivemind/internal/logging"
	"github.com/hivemindhq/hivemind/internal/types"
)

var log = logging.WithComponent("SNAPSHOT")

// formatVersion is bumped whenever the document shape changes
// incompatibly. Restore treats a missing or lower version's absent
// fields as empty rather than refusing to load, per the open-question
// decision to stay forward-compatible with v1 documents that predate
// the task tables.
const formatVersion = 2

// Document is the full on-disk snapshot shape.
type Document struct {
	Version       int                            `json:"version"`
	SavedAt       time.Time                      `json:"saved_at"`
	Memories      []types.Memory                 `json:"memories"`
	MemoryHistory map[int64][]types.MemoryHistory `json:"memory_history"`
	Entities      []types.Entity                 `json:"entities"`
	Relationships []types.Relationship           `json:"relationships"`
	Episodes      []types.Episode                `json:"episodes"`
	Agents        []types.Agent                  `json:"agents"`
	Tasks         []types.Task                   `json:"tasks"`
	TaskEvents    map[int64][]types.TaskEvent    `json:"task_events,omitempty"`
	Channels      []types.Channel                `json:"channels,omitempty"`
}

// Source supplies the data a snapshot captures; the engine implements
// this by reading straight from its stores.
type Source interface {
	Snapshot() Document
}

// Sink applies a restored document back into live stores.
type Sink interface {
	Restore(doc Document)
}

// Manager owns the on-disk path and the periodic save loop.
type Manager struct {
	path     string
	source   Source
	sink     Sink
	interval time.Duration
}

func NewManager(dataDir string, interval time.Duration, source Source, sink Sink) *Manager {
	return &Manager{
		path:     filepath.Join(dataDir, "snapshot.json"),
		source:   source,
		sink:     sink,
		interval: interval,
	}
}

// Save atomically writes the current state to disk: marshal, write to
// a sibling ".tmp" file, then rename over the canonical path.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	doc := m.source.Snapshot()
	doc.Version = formatVersion
	doc.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("failed to install snapshot: %w", err)
	}

	log.Infof("saved snapshot to %s (%d memories, %d tasks)", m.path, len(doc.Memories), len(doc.Tasks))
	return nil
}

// Load reads the snapshot from disk, if present, and restores it. A
// missing file is not an error: it just means the process is starting
// fresh.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Infof("no snapshot at %s, starting empty", m.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}

	m.sink.Restore(doc)
	log.Infof("restored snapshot from %s (%d memories, %d tasks)", m.path, len(doc.Memories), len(doc.Tasks))
	return nil
}

// Run saves on every tick until stop is closed, then performs one
// final save before returning — the shutdown-time snapshot spec.md
// requires.
func (m *Manager) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Save(); err != nil {
				log.Errorf("periodic snapshot failed: %v", err)
			}
		case <-stop:
			if err := m.Save(); err != nil {
				log.Errorf("final snapshot failed: %v", err)
			}
			return
		}
	}
}
