package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/careledger/claimsort/internal/model"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

const (
	dirMode  os.FileMode = 0755
	fileMode os.FileMode = 0644
)

// Grouping manages claim groupings (folders) under the destination root:
// idempotent creation, sidecar metadata, and document relocation.
type Grouping struct {
	fs      afs.Service
	baseURL string
}

// NewGrouping creates a grouping store rooted at the destination location
func NewGrouping(baseURL string) *Grouping {
	return &Grouping{fs: afs.New(), baseURL: normalizeLocation(baseURL)}
}

// Groupings lists the persisted claim groupings with their sidecar
// metadata where present. Consumed by the registry at cold start.
func (g *Grouping) Groupings(ctx context.Context) ([]model.GroupingInfo, error) {
	exists, err := g.fs.Exists(ctx, g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("check destination %s: %w", g.baseURL, err)
	}
	if !exists {
		return nil, nil
	}

	objects, err := g.fs.List(ctx, g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("list destination %s: %w", g.baseURL, err)
	}

	basePath := url.Path(g.baseURL)
	var infos []model.GroupingInfo
	for _, obj := range objects {
		if !obj.IsDir() {
			continue
		}
		// afs lists the location itself alongside its children
		if url.Equals(url.Path(obj.URL()), basePath) {
			continue
		}
		info := model.GroupingInfo{Name: obj.Name(), URL: obj.URL()}
		if meta, err := g.ReadMeta(ctx, obj.URL()); err == nil {
			info.Meta = meta
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// Ensure creates the grouping for the label if it does not already exist
// and returns its URL. Calling it twice with the same label yields the
// same grouping: the existence check makes racing runs converge on one
// folder instead of two.
func (g *Grouping) Ensure(ctx context.Context, label string) (string, error) {
	groupingURL := url.Join(g.baseURL, label)

	exists, err := g.fs.Exists(ctx, groupingURL)
	if err != nil {
		return "", fmt.Errorf("check grouping %s: %w", groupingURL, err)
	}
	if exists {
		return groupingURL, nil
	}

	if err := g.fs.Create(ctx, groupingURL, dirMode, true); err != nil {
		return "", fmt.Errorf("create grouping %s: %w", groupingURL, err)
	}
	return groupingURL, nil
}

// WriteMeta persists the versioned sidecar record inside the grouping.
// Existing sidecars are left alone so the anchor date stays fixed.
func (g *Grouping) WriteMeta(ctx context.Context, groupingURL string, meta model.ClaimMeta) error {
	metaURL := url.Join(groupingURL, model.MetaName)

	exists, err := g.fs.Exists(ctx, metaURL)
	if err != nil {
		return fmt.Errorf("check sidecar %s: %w", metaURL, err)
	}
	if exists {
		return nil
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := g.fs.Upload(ctx, metaURL, fileMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write sidecar %s: %w", metaURL, err)
	}
	return nil
}

// ReadMeta loads the sidecar record from a grouping. Absent or
// unreadable sidecars return an error; callers fall back to legacy
// name parsing.
func (g *Grouping) ReadMeta(ctx context.Context, groupingURL string) (*model.ClaimMeta, error) {
	metaURL := url.Join(groupingURL, model.MetaName)

	exists, err := g.fs.Exists(ctx, metaURL)
	if err != nil {
		return nil, fmt.Errorf("check sidecar %s: %w", metaURL, err)
	}
	if !exists {
		return nil, fmt.Errorf("sidecar absent: %s", metaURL)
	}

	data, err := g.fs.DownloadWithURL(ctx, metaURL)
	if err != nil {
		return nil, fmt.Errorf("read sidecar %s: %w", metaURL, err)
	}

	var meta model.ClaimMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", metaURL, err)
	}
	if meta.Version != model.MetaVersion {
		return nil, fmt.Errorf("unsupported sidecar version %d in %s", meta.Version, metaURL)
	}
	return &meta, nil
}

// MoveDocument relocates a source document into the grouping under its
// new (category-prefixed) name and returns the destination URL
func (g *Grouping) MoveDocument(ctx context.Context, doc Document, groupingURL, newName string) (string, error) {
	destURL := url.Join(groupingURL, newName)
	if err := g.fs.Move(ctx, doc.URL, destURL); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", doc.URL, destURL, err)
	}
	return destURL, nil
}

// StoredName builds the category-prefixed name a document gets inside
// its grouping
func StoredName(category model.Category, originalName string) string {
	return fmt.Sprintf("%s_%s", category, originalName)
}

// BaseURL returns the configured destination root
func (g *Grouping) BaseURL() string {
	return g.baseURL
}

// Touch is a small helper for tests and tooling that need a destination
// root to exist up front
func (g *Grouping) Touch(ctx context.Context) error {
	exists, err := g.fs.Exists(ctx, g.baseURL)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return g.fs.Create(ctx, g.baseURL, dirMode, true)
}
