package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/backr/internal/domain/model"
)

// Seed is the on-disk fixture format for MemoryStore.
type Seed struct {
	Entities  []model.Entity   `yaml:"entities"`
	Campaigns []model.Campaign `yaml:"campaigns"`
	Backings  []model.Backing  `yaml:"backings"`
}

// ReadSeed reads and validates a YAML seed file.
func ReadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates a YAML seed document.
func ParseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeedFile, err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// LoadSeed reads a YAML seed file into s.
func (s *MemoryStore) LoadSeed(path string) error {
	seed, err := ReadSeed(path)
	if err != nil {
		return err
	}
	s.ApplyParsedSeed(seed)
	return nil
}

// ApplySeed decodes a YAML document and inserts its rows. Rows that
// reference unknown entities are rejected before anything is written.
func (s *MemoryStore) ApplySeed(raw []byte) error {
	seed, err := ParseSeed(raw)
	if err != nil {
		return err
	}
	s.ApplyParsedSeed(seed)
	return nil
}

// ApplyParsedSeed inserts the rows of an already validated seed.
func (s *MemoryStore) ApplyParsedSeed(seed *Seed) {
	for _, e := range seed.Entities {
		s.PutEntity(e)
	}
	for _, c := range seed.Campaigns {
		s.PutCampaign(c)
	}
	for _, b := range seed.Backings {
		s.PutBacking(b)
	}
}

func (seed *Seed) validate() error {
	known := make(map[string]struct{}, len(seed.Entities))
	for _, e := range seed.Entities {
		if e.ID == "" {
			return fmt.Errorf("%w: entity without id", ErrInvalidSeedFile)
		}
		if !e.Type.Valid() {
			return fmt.Errorf("%w: entity %s has type %q", ErrInvalidSeedFile, e.ID, e.Type)
		}
		known[e.ID] = struct{}{}
	}
	for _, c := range seed.Campaigns {
		if _, ok := known[c.EntityID]; !ok {
			return fmt.Errorf("%w: campaign %s references unknown entity %s", ErrInvalidSeedFile, c.ID, c.EntityID)
		}
	}
	for _, b := range seed.Backings {
		if _, ok := known[b.EntityID]; !ok {
			return fmt.Errorf("%w: backing %s references unknown entity %s", ErrInvalidSeedFile, b.ID, b.EntityID)
		}
		if b.Status == "" {
			return fmt.Errorf("%w: backing %s has no status", ErrInvalidSeedFile, b.ID)
		}
	}
	return nil
}
