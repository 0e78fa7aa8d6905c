package batch

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	prefixLength = 3
	suffixLength = 4
	suffixChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// IDGenerator builds human-readable batch identifiers of the form
// <species prefix><unix millis><random suffix>, e.g. ASH1760700000000K3P9.
type IDGenerator struct {
	now    func() time.Time
	suffix func(n int) string
}

// NewIDGenerator creates a generator backed by the wall clock and crypto/rand
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now, suffix: randomSuffix}
}

// NewIDGeneratorWith creates a generator with injected clock and suffix source
func NewIDGeneratorWith(now func() time.Time, suffix func(n int) string) *IDGenerator {
	return &IDGenerator{now: now, suffix: suffix}
}

// NewID returns a fresh identifier for species
func (g *IDGenerator) NewID(species string) string {
	return SpeciesPrefix(species) +
		strconv.FormatInt(g.now().UnixMilli(), 10) +
		g.suffix(suffixLength)
}

// SpeciesPrefix returns the first three ASCII letters of species, upper-cased and padded with X
func SpeciesPrefix(species string) string {
	var b strings.Builder
	for _, r := range species {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == prefixLength {
			break
		}
	}
	for b.Len() < prefixLength {
		b.WriteByte('X')
	}
	return b.String()
}

func randomSuffix(n int) string {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(suffixChars)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = suffixChars[idx.Int64()]
	}
	return string(out)
}

// NewTraceCode returns an opaque public code: 32 upper-case hex characters
func NewTraceCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
