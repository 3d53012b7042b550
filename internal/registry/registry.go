package registry

import (
	"context"
	"fmt"

	"github.com/careledger/claimsort/internal/model"
)

// GroupingLister enumerates persisted claim groupings in the destination.
// Implemented by the grouping store; kept narrow so tests can fake it.
type GroupingLister interface {
	Groupings(ctx context.Context) ([]model.GroupingInfo, error)
}

// LegacyParser re-derives a claim from a grouping name when no sidecar
// is present. Returns false when the name does not conform.
type LegacyParser func(name string) (*model.Claim, bool)

// Registry is the in-memory set of known claims for one batch run.
// It is re-derived from the destination at the start of every run, so a
// truncated run simply leaves unprocessed documents for the next one.
//
// Claims keep insertion order: matching iterates them in that order and
// resolves ties to the first hit. There is no removal, and anchor dates
// are never updated after insertion.
type Registry struct {
	claims  []*model.Claim
	byLabel map[string]*model.Claim
}

// New creates an empty registry
func New() *Registry {
	return &Registry{byLabel: make(map[string]*model.Claim)}
}

// Load populates a registry from the destination groupings. The sidecar
// record is authoritative; groupings without one fall back to the legacy
// name parser, and names that parse into neither are skipped.
func Load(ctx context.Context, lister GroupingLister, legacy LegacyParser) (*Registry, error) {
	infos, err := lister.Groupings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groupings: %w", err)
	}

	reg := New()
	for _, info := range infos {
		var claim *model.Claim

		switch {
		case info.Meta != nil:
			claim = &model.Claim{
				ClusterKey:  info.Meta.ClusterKey,
				Label:       info.Meta.Label,
				AnchorDate:  info.Meta.AnchorDate,
				GroupingURL: info.URL,
			}
		case legacy != nil:
			parsed, ok := legacy(info.Name)
			if !ok {
				continue
			}
			claim = parsed
			claim.GroupingURL = info.URL
		default:
			continue
		}

		reg.Insert(claim)
	}

	return reg, nil
}

// Insert adds a claim. It is immediately visible to subsequent lookups,
// so a claim synthesized for one record matches later records in the
// same batch.
func (r *Registry) Insert(claim *model.Claim) {
	if _, exists := r.byLabel[claim.Label]; exists {
		return
	}
	r.claims = append(r.claims, claim)
	r.byLabel[claim.Label] = claim
}

// Lookup returns the claims with the given identity key, in insertion order
func (r *Registry) Lookup(identityKey string) []*model.Claim {
	var out []*model.Claim
	for _, c := range r.claims {
		if c.ClusterKey == identityKey {
			out = append(out, c)
		}
	}
	return out
}

// LookupLabel returns the claim with the given label, if any
func (r *Registry) LookupLabel(label string) (*model.Claim, bool) {
	c, ok := r.byLabel[label]
	return c, ok
}

// Claims returns the known claims in insertion order
func (r *Registry) Claims() []*model.Claim {
	return r.claims
}

// Len returns the number of known claims
func (r *Registry) Len() int {
	return len(r.claims)
}

// RecentLabels returns up to n labels of the most recently inserted
// claims, newest first. Used as the bounded candidate list offered to
// the extractor as a naming bias.
func (r *Registry) RecentLabels(n int) []string {
	if n <= 0 || len(r.claims) == 0 {
		return nil
	}
	if n > len(r.claims) {
		n = len(r.claims)
	}

	labels := make([]string, 0, n)
	for i := len(r.claims) - 1; i >= 0 && len(labels) < n; i-- {
		labels = append(labels, r.claims[i].Label)
	}
	return labels
}
