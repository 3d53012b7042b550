package match

import (
	"time"

	"github.com/careledger/claimsort/internal/model"
	"github.com/careledger/claimsort/internal/registry"
)

// Matcher decides whether a record belongs to an existing claim or starts
// a new one.
//
// Strategy: deterministic identity+window matching. A record matches an
// existing claim iff its identity key equals the claim's cluster key
// exactly AND the gap between the record's event date and the claim's
// anchor date is within the tolerance window. When several claims
// qualify, the first in registry insertion order wins, which keeps runs
// reproducible.
type Matcher struct {
	window time.Duration
}

// DefaultWindowDays is the tolerance window between a record's event date
// and a claim's anchor date for automatic matching
const DefaultWindowDays = 14

// NewMatcher creates a matcher with the given tolerance window in days
func NewMatcher(windowDays int) *Matcher {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Matcher{window: time.Duration(windowDays) * 24 * time.Hour}
}

// Outcome is the result of matching one record
type Outcome struct {
	Claim   *model.Claim // The assigned claim, never nil
	Created bool         // Whether the claim was synthesized for this record
}

// Match assigns the record to at most one claim. Records without an
// identity signal never merge into an existing claim; each starts its
// own cluster. New claims are NOT inserted into the registry here;
// the caller inserts after the grouping side effects succeed.
func (m *Matcher) Match(rec *model.DocumentRecord, reg *registry.Registry) Outcome {
	if rec.HasIdentity() {
		for _, claim := range reg.Claims() {
			if claim.ClusterKey != rec.IdentityKey {
				continue
			}
			if withinWindow(rec.EventDate, claim.AnchorDate, m.window) {
				return Outcome{Claim: claim}
			}
		}
	}

	label := Label(rec)

	// A label collision means the claim already exists in the destination
	// namespace; reuse it rather than creating a duplicate grouping.
	if existing, ok := reg.LookupLabel(label); ok {
		return Outcome{Claim: existing}
	}

	return Outcome{
		Claim: &model.Claim{
			ClusterKey: rec.IdentityKey,
			Label:      label,
			AnchorDate: rec.EventDate,
		},
		Created: true,
	}
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	return gap <= window
}
