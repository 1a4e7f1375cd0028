// Package config holds the brew configuration a user can adjust at
// runtime (target weight, auto-tare, predictive-stop) and the interface
// brewcore uses to persist it, the same way the teacher's config package
// separates "the document" from "where it lives".
package config

import (
	"fmt"

	"github.com/andreyvit/tinyjson"

	"brewcore/brew"
)

const (
	defaultTargetWeight  = 36.0
	defaultAutoTare      = true
	defaultPredictiveCut = true
)

// Default returns the brew configuration a fresh device boots with.
func Default() brew.Config {
	return brew.Config{
		TargetWeight:          defaultTargetWeight,
		AutoTareEnabled:       defaultAutoTare,
		PredictiveStopEnabled: defaultPredictiveCut,
	}
}

// Store is the persistence boundary; the concrete non-volatile-storage
// implementation is out of scope (§1).
type Store interface {
	Load() ([]byte, error)
	Save(raw []byte) error
}

// Load reads a brew.Config from the Store, falling back to Default if the
// store is empty or its content can't be parsed as a JSON object — a
// corrupt settings blob must never prevent the device from booting.
func Load(s Store) (brew.Config, error) {
	raw, err := s.Load()
	if err != nil {
		return brew.Config{}, err
	}
	if len(raw) == 0 {
		return Default(), nil
	}
	return Decode(raw), nil
}

// Decode parses a JSON brew-config document, same lazy-value approach the
// teacher's config package uses for its embedded documents: treat the
// document as an untyped map and pull out only the fields this domain
// cares about, defaulting anything missing or mistyped.
func Decode(raw []byte) brew.Config {
	cfg := Default()

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return cfg
	}
	if w, ok := m["target_weight_g"].(float64); ok {
		cfg.TargetWeight = w
	}
	if b, ok := m["auto_tare_enabled"].(bool); ok {
		cfg.AutoTareEnabled = b
	}
	if b, ok := m["predictive_stop_enabled"].(bool); ok {
		cfg.PredictiveStopEnabled = b
	}
	return cfg
}

// Encode renders cfg as the JSON document Decode reads back. The document
// has three flat scalar fields, so it is built directly rather than
// through a reflection-based encoder — tinyjson's Raw/Value pair used for
// Decode, and the rest of the corpus, only ever exercise the decode
// direction for arbitrary documents.
func Encode(cfg brew.Config) []byte {
	return []byte(fmt.Sprintf(
		`{"target_weight_g":%s,"auto_tare_enabled":%t,"predictive_stop_enabled":%t}`,
		formatWeight(cfg.TargetWeight), cfg.AutoTareEnabled, cfg.PredictiveStopEnabled,
	))
}

// Save persists cfg through the Store.
func Save(s Store, cfg brew.Config) error {
	return s.Save(Encode(cfg))
}

func formatWeight(w float64) string {
	return fmt.Sprintf("%.2f", w)
}
