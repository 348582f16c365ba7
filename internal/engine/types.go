// Package engine holds the domain model of the relay: provider identity and
// secrets, job identity, the analysis work payload, and the sanitize pass
// that bounds and canonicalizes client-submitted work.
package engine

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/castlab/enginerelay/internal/rules"
)

// ProviderSecret is the shared secret a provider presents when polling for
// work. It is never stored; only its derived selector is.
type ProviderSecret string

// ProviderSelector is the opaque broker key derived from a provider secret.
type ProviderSelector string

// Selector derives the broker key for the secret. Deterministic and one-way:
// hex(SHA-256("providerSecret:" + secret)).
func (s ProviderSecret) Selector() ProviderSelector {
	h := sha256.New()
	h.Write([]byte("providerSecret:"))
	h.Write([]byte(s))
	return ProviderSelector(hex.EncodeToString(h.Sum(nil)))
}

// ClientSecret authenticates a requester against an engine registration.
type ClientSecret string

// Equal compares secrets in constant time.
func (s ClientSecret) Equal(other ClientSecret) bool {
	return subtle.ConstantTimeCompare([]byte(s), []byte(other)) == 1
}

// NewClientSecret generates a fresh client secret. The ees_ prefix marks the
// token type for operators grepping logs or configs.
func NewClientSecret() ClientSecret {
	return ClientSecret("ees_" + randomAlphanumeric(32))
}

// JobID correlates a dispatched job with its later result submission.
type JobID string

const jobIDLength = 16

// NewJobID returns a fresh high-entropy job identity.
func NewJobID() JobID {
	return JobID(randomAlphanumeric(jobIDLength))
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomAlphanumeric(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("engine: read random: %v", err))
	}
	for i, b := range buf {
		buf[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return string(buf)
}

// MultiPv is the number of principal variations requested per job.
type MultiPv int

const (
	MinMultiPv MultiPv = 1
	MaxMultiPv MultiPv = 5
)

// Engine is a registered provider capability record. Secrets never appear in
// JSON output.
type Engine struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ClientSecret     ClientSecret     `json:"-"`
	ProviderSelector ProviderSelector `json:"-"`
	MaxThreads       int              `json:"maxThreads"`
	MaxHash          int              `json:"maxHash"`
	Variants         []Variant        `json:"variants"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// SupportsVariant reports whether the engine declares support for v, compared
// in the native variant space (chess960 counts as standard, and so on).
func (e Engine) SupportsVariant(v Variant) bool {
	native := v.Native()
	for _, d := range e.Variants {
		if d.Native() == native {
			return true
		}
	}
	return false
}

// Variant is the wire-level rule variant of a job or capability record.
type Variant string

const (
	VariantStandard      Variant = "standard"
	VariantChess960      Variant = "chess960"
	VariantFromPosition  Variant = "fromPosition"
	VariantKingOfTheHill Variant = "kingOfTheHill"
	VariantThreeCheck    Variant = "threeCheck"
	VariantAntichess     Variant = "antichess"
	VariantAtomic        Variant = "atomic"
	VariantCrazyhouse    Variant = "crazyhouse"
	VariantHorde         Variant = "horde"
	VariantRacingKings   Variant = "racingKings"
)

// variantAliases maps every accepted spelling to its canonical value.
// Display names come from upstream clients that send what they render.
var variantAliases = map[string]Variant{
	"standard":         VariantStandard,
	"chess":            VariantStandard,
	"chess960":         VariantChess960,
	"fromPosition":     VariantFromPosition,
	"From Position":    VariantFromPosition,
	"kingOfTheHill":    VariantKingOfTheHill,
	"King of the Hill": VariantKingOfTheHill,
	"threeCheck":       VariantThreeCheck,
	"Three-check":      VariantThreeCheck,
	"antichess":        VariantAntichess,
	"atomic":           VariantAtomic,
	"crazyhouse":       VariantCrazyhouse,
	"horde":            VariantHorde,
	"racingKings":      VariantRacingKings,
	"Racing Kings":     VariantRacingKings,
}

func (v *Variant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	canonical, ok := variantAliases[s]
	if !ok {
		return fmt.Errorf("unknown variant %q", s)
	}
	*v = canonical
	return nil
}

// Native maps the wire variant into the native rule-variant space.
func (v Variant) Native() rules.Variant {
	switch v {
	case VariantKingOfTheHill:
		return rules.VariantKingOfTheHill
	case VariantThreeCheck:
		return rules.VariantThreeCheck
	case VariantAntichess:
		return rules.VariantAntichess
	case VariantAtomic:
		return rules.VariantAtomic
	case VariantCrazyhouse:
		return rules.VariantCrazyhouse
	case VariantHorde:
		return rules.VariantHorde
	case VariantRacingKings:
		return rules.VariantRacingKings
	default:
		// standard, chess960 and fromPosition share standard movement.
		return rules.VariantChess
	}
}

// variantFromNative is the canonical wire spelling for a native variant.
func variantFromNative(v rules.Variant) Variant {
	switch v {
	case rules.VariantKingOfTheHill:
		return VariantKingOfTheHill
	case rules.VariantThreeCheck:
		return VariantThreeCheck
	case rules.VariantAntichess:
		return VariantAntichess
	case rules.VariantAtomic:
		return VariantAtomic
	case rules.VariantCrazyhouse:
		return VariantCrazyhouse
	case rules.VariantHorde:
		return VariantHorde
	case rules.VariantRacingKings:
		return VariantRacingKings
	default:
		return VariantStandard
	}
}
