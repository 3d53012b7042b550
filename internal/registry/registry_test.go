package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careledger/claimsort/internal/match"
	"github.com/careledger/claimsort/internal/model"
	"github.com/careledger/claimsort/internal/registry"
)

type fakeLister struct {
	infos []model.GroupingInfo
	err   error
}

func (f *fakeLister) Groupings(ctx context.Context) ([]model.GroupingInfo, error) {
	return f.infos, f.err
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLoad_SidecarAuthoritative(t *testing.T) {
	lister := &fakeLister{infos: []model.GroupingInfo{
		{
			Name: "Asha_U1_2025-01-05",
			URL:  "file:///claims/Asha_U1_2025-01-05",
			Meta: &model.ClaimMeta{
				Version:    model.MetaVersion,
				ClusterKey: "U1-sidecar",
				Label:      "Asha_U1_2025-01-05",
				AnchorDate: date("2025-01-03"),
			},
		},
	}}

	reg, err := registry.Load(context.Background(), lister, match.ParseLegacyLabel)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claim, ok := reg.LookupLabel("Asha_U1_2025-01-05")
	if !ok {
		t.Fatal("Expected claim to be loaded")
	}
	// The sidecar wins even where the name would parse differently
	if claim.ClusterKey != "U1-sidecar" {
		t.Errorf("Expected sidecar cluster key, got %s", claim.ClusterKey)
	}
	if !claim.AnchorDate.Equal(date("2025-01-03")) {
		t.Errorf("Expected sidecar anchor date, got %v", claim.AnchorDate)
	}
	if claim.GroupingURL != "file:///claims/Asha_U1_2025-01-05" {
		t.Errorf("Expected grouping URL carried over, got %s", claim.GroupingURL)
	}
}

func TestLoad_LegacyFallback(t *testing.T) {
	lister := &fakeLister{infos: []model.GroupingInfo{
		{Name: "Ravi_U9_2025-02-01", URL: "file:///claims/Ravi_U9_2025-02-01"},
	}}

	reg, err := registry.Load(context.Background(), lister, match.ParseLegacyLabel)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claim, ok := reg.LookupLabel("Ravi_U9_2025-02-01")
	if !ok {
		t.Fatal("Expected legacy grouping to be re-derived")
	}
	if claim.ClusterKey != "U9" {
		t.Errorf("Expected cluster key U9, got %s", claim.ClusterKey)
	}
	if !claim.AnchorDate.Equal(date("2025-02-01")) {
		t.Errorf("Expected anchor 2025-02-01, got %v", claim.AnchorDate)
	}
}

func TestLoad_SkipsNonConforming(t *testing.T) {
	lister := &fakeLister{infos: []model.GroupingInfo{
		{Name: "random-folder", URL: "file:///claims/random-folder"},
		{Name: "Asha_U1_not-a-date", URL: "file:///claims/Asha_U1_not-a-date"},
		{Name: "Ravi_U9_2025-02-01", URL: "file:///claims/Ravi_U9_2025-02-01"},
	}}

	reg, err := registry.Load(context.Background(), lister, match.ParseLegacyLabel)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected only the conforming grouping, got %d claims", reg.Len())
	}
}

func TestLoad_ListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("destination unreachable")}

	if _, err := registry.Load(context.Background(), lister, match.ParseLegacyLabel); err == nil {
		t.Error("Expected a list failure to surface")
	}
}

func TestInsert_ImmediatelyVisible(t *testing.T) {
	reg := registry.New()
	claim := &model.Claim{ClusterKey: "U1", Label: "Asha_U1_2025-01-05", AnchorDate: date("2025-01-05")}
	reg.Insert(claim)

	got, ok := reg.LookupLabel("Asha_U1_2025-01-05")
	if !ok || got != claim {
		t.Error("Expected inserted claim to be immediately visible")
	}
	if matches := reg.Lookup("U1"); len(matches) != 1 {
		t.Errorf("Expected one claim for U1, got %d", len(matches))
	}
}

func TestInsert_DedupByLabel(t *testing.T) {
	reg := registry.New()
	first := &model.Claim{ClusterKey: "U1", Label: "same", AnchorDate: date("2025-01-05")}
	second := &model.Claim{ClusterKey: "U2", Label: "same", AnchorDate: date("2025-02-01")}

	reg.Insert(first)
	reg.Insert(second)

	if reg.Len() != 1 {
		t.Fatalf("Expected duplicate label to be dropped, got %d claims", reg.Len())
	}
	got, _ := reg.LookupLabel("same")
	if got != first {
		t.Error("Expected the first insertion to win")
	}
}

func TestRecentLabels(t *testing.T) {
	reg := registry.New()
	for _, label := range []string{"a", "b", "c", "d"} {
		reg.Insert(&model.Claim{Label: label})
	}

	got := reg.RecentLabels(3)
	want := []string{"d", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d labels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RecentLabels[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if labels := reg.RecentLabels(10); len(labels) != 4 {
		t.Errorf("Expected all 4 labels when n exceeds size, got %d", len(labels))
	}
	if labels := reg.RecentLabels(0); labels != nil {
		t.Error("Expected nil for n=0")
	}
	if labels := registry.New().RecentLabels(5); labels != nil {
		t.Error("Expected nil for empty registry")
	}
}
