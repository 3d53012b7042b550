package model

import "time"

// Claim represents a cluster of documents believed to belong to one care episode
type Claim struct {
	ClusterKey  string    `json:"cluster_key"`            // Identity key the cluster groups on
	Label       string    `json:"label"`                  // Human-readable, filesystem-safe grouping name
	AnchorDate  time.Time `json:"anchor_date"`            // Temporal reference for matching, fixed at creation
	GroupingURL string    `json:"grouping_url,omitempty"` // Destination grouping, set once organized
}

// MetaVersion is the current sidecar encoding version
const MetaVersion = 1

// MetaName is the fixed sidecar file name stored inside each grouping
const MetaName = "claim.json"

// ClaimMeta is the versioned sidecar record persisted alongside each grouping
// so registry re-derivation does not depend on parsing folder names.
// Groupings predating the sidecar fall back to split-parsing the name.
type ClaimMeta struct {
	Version    int       `json:"version"`
	ClusterKey string    `json:"cluster_key"`
	Label      string    `json:"label"`
	AnchorDate time.Time `json:"anchor_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// Meta builds the sidecar record for a claim
func (c *Claim) Meta(now time.Time) ClaimMeta {
	return ClaimMeta{
		Version:    MetaVersion,
		ClusterKey: c.ClusterKey,
		Label:      c.Label,
		AnchorDate: c.AnchorDate,
		CreatedAt:  now.UTC(),
	}
}

// GroupingInfo describes one persisted destination grouping as seen by the
// registry at cold start
type GroupingInfo struct {
	Name string     // Grouping (folder) name
	URL  string     // Full storage URL of the grouping
	Meta *ClaimMeta // Parsed sidecar, nil when absent or unreadable
}
