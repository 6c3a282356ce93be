// Package id provides ID generation for membranes and their bookkeeping.
//
// IDs are prefixed ULIDs (mbr_*), sortable by creation time, so that log
// lines from several coexisting membranes can be told apart and ordered.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MembraneID identifies one membrane instance
type MembraneID string

// AppID identifies one guest application session
type AppID string

const (
	// MembranePrefix tags membrane IDs
	MembranePrefix = "mbr"
	// AppPrefix tags guest application IDs
	AppPrefix = "app"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewMembraneID generates a new membrane ID
func NewMembraneID() MembraneID {
	return MembraneID(Default().GenerateWithPrefix(MembranePrefix))
}

// NewAppID generates a new guest application ID
func NewAppID() AppID {
	return AppID(Default().GenerateWithPrefix(AppPrefix))
}

// String returns the ID as a string
func (id MembraneID) String() string { return string(id) }

// String returns the ID as a string
func (id AppID) String() string { return string(id) }

// Timestamp extracts the creation time of a membrane ID
func (id MembraneID) Timestamp() (time.Time, error) {
	_, raw, ok := strings.Cut(string(id), "_")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid membrane id %q", id)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValid checks if a string is a valid, unprefixed ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
