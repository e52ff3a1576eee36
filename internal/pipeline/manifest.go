package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/helper"
)

const statusDone = "done"

// StageStatus is one manifest entry.
type StageStatus struct {
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
	Fingerprint string    `json:"fingerprint"`
}

// Manifest records which stages completed and under which settings. It is
// written after every completed stage, so an interrupted run leaves no entry
// for the stage it died in and that stage reruns.
type Manifest struct {
	Stages map[string]StageStatus `json:"stages"`
}

// LoadManifest reads the manifest at path. A missing, unreadable or corrupt
// manifest yields an empty one, which makes every stage run again.
func LoadManifest(path string) *Manifest {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Could not read manifest, all stages will run")
		}
		return &Manifest{Stages: map[string]StageStatus{}}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Could not parse manifest, all stages will run")
		return &Manifest{Stages: map[string]StageStatus{}}
	}
	if m.Stages == nil {
		m.Stages = map[string]StageStatus{}
	}
	return &m
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return helper.WriteFileAtomic(path, data)
}

// Done reports whether the stage completed under the same fingerprint.
func (m *Manifest) Done(stage, fingerprint string) bool {
	st, ok := m.Stages[stage]
	return ok && st.Status == statusDone && st.Fingerprint == fingerprint
}

// MarkDone records a completed stage.
func (m *Manifest) MarkDone(stage, fingerprint string) {
	m.Stages[stage] = StageStatus{
		Status:      statusDone,
		CompletedAt: time.Now().UTC(),
		Fingerprint: fingerprint,
	}
}
