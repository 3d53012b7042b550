package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/careledger/claimsort/internal/cache"
	"github.com/careledger/claimsort/internal/extract"
	"github.com/careledger/claimsort/internal/llm"
	"github.com/careledger/claimsort/internal/match"
	"github.com/careledger/claimsort/internal/model"
	"github.com/careledger/claimsort/internal/registry"
	"github.com/careledger/claimsort/internal/store"
	"github.com/careledger/claimsort/internal/worker"
	"github.com/google/uuid"
)

// DocumentSource enumerates source documents and extracts their text
type DocumentSource interface {
	List(ctx context.Context) ([]store.Document, error)
	Text(ctx context.Context, doc store.Document) (string, error)
}

// GroupingStore manages claim groupings in the destination
type GroupingStore interface {
	Groupings(ctx context.Context) ([]model.GroupingInfo, error)
	Ensure(ctx context.Context, label string) (string, error)
	WriteMeta(ctx context.Context, groupingURL string, meta model.ClaimMeta) error
	MoveDocument(ctx context.Context, doc store.Document, groupingURL, newName string) (string, error)
}

// ReportStore appends per-document rows to the grouping's report artifact
type ReportStore interface {
	Append(ctx context.Context, groupingURL string, rec *model.DocumentRecord, storedName string) error
}

// Pipeline drives one batch run: extract every source document, sort
// records chronologically, match each against the claim registry, and
// emit the organize/report side effects.
//
// Everything is single-threaded and synchronous: one document is
// processed fully before the next. A failure on one document is
// contained at the document boundary; the document stays in the source
// for the next scheduled run.
type Pipeline struct {
	source    DocumentSource
	groupings GroupingStore
	reports   ReportStore
	extractor *extract.Extractor
	matcher   *match.Matcher
	queue     *worker.Queue
	limiter   *worker.Limiter
	cache     cache.Cache // nil when disabled
	provider  string
	config    *model.Config
	now       func() time.Time
}

// NewPipeline wires a pipeline from configuration, constructing the LLM
// provider and the afs-backed collaborators
func NewPipeline(cfg *model.Config) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	return New(cfg, provider,
		store.NewSource(cfg.Source.URL),
		store.NewGrouping(cfg.Destination.URL),
		store.NewReport(),
	), nil
}

// New wires a pipeline from explicit collaborators
func New(cfg *model.Config, provider llm.Provider, source DocumentSource, groupings GroupingStore, reports ReportStore) *Pipeline {
	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	extractor := extract.NewExtractor(provider,
		extract.WithMinTextLength(cfg.Source.MinTextLength),
		extract.WithMaxPromptChars(cfg.Match.MaxPromptChars),
	)

	return &Pipeline{
		source:    source,
		groupings: groupings,
		reports:   reports,
		extractor: extractor,
		matcher:   match.NewMatcher(cfg.Match.WindowDays),
		queue:     worker.NewQueue(time.Duration(cfg.LLM.Timeout) * time.Second),
		limiter:   worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		cache:     c,
		provider:  provider.Name(),
		config:    cfg,
		now:       time.Now,
	}
}

// pair keeps an extracted record attached to its source document through
// the sort between the extract and match phases
type pair struct {
	doc store.Document
	rec *model.DocumentRecord
}

// Run executes one batch over the source location
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}

	// 1. Cold-start the registry from the destination groupings
	reg, err := registry.Load(ctx, p.groupings, match.ParseLegacyLabel)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	// 2. Enumerate source documents
	docs, err := p.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source: %w", err)
	}
	report.Documents = len(docs)

	// 3. Extract phase: one document at a time, failures contained
	pairs := p.extractAll(ctx, docs, reg, report)

	// 4. Sort ascending by event date so cluster anchor dates reflect the
	// true earliest event rather than processing order
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].rec.EventDate.Before(pairs[j].rec.EventDate)
	})

	// 5. Match phase: assign each record and emit side effects
	for _, pr := range pairs {
		if err := p.organize(ctx, pr, reg, report); err != nil {
			p.skip(report, pr.doc, err)
		}
	}

	report.FinishedAt = p.now().UTC()
	return report, nil
}

// extractAll runs the extract phase through the sequential queue,
// returning the successfully extracted (document, record) pairs
func (p *Pipeline) extractAll(ctx context.Context, docs []store.Document, reg *registry.Registry, report *model.RunReport) []pair {
	candidates := reg.RecentLabels(p.config.Match.CandidateLabels)

	var pairs []pair
	tasks := make([]worker.Task, 0, len(docs))
	for _, doc := range docs {
		doc := doc
		tasks = append(tasks, worker.Task{
			Name: doc.Name,
			Fn: func(taskCtx context.Context) error {
				rec, err := p.extractOne(taskCtx, doc, candidates)
				if err != nil {
					return err
				}
				pairs = append(pairs, pair{doc: doc, rec: rec})
				return nil
			},
		})
	}

	for _, result := range p.queue.RunAll(ctx, tasks) {
		if result.Err != nil {
			p.skip(report, store.Document{Name: result.Name}, result.Err)
		}
	}

	return pairs
}

// extractOne extracts a single document, consulting the cache first
func (p *Pipeline) extractOne(ctx context.Context, doc store.Document, candidates []string) (*model.DocumentRecord, error) {
	text, err := p.source.Text(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var key string
	if p.cache != nil {
		key = cache.Key([]byte(text))
		if data, found := p.cache.Get(key); found {
			var rec model.DocumentRecord
			if err := json.Unmarshal(data, &rec); err == nil {
				// Source identity may differ from the cached run
				rec.SourceID = doc.URL
				rec.SourceName = doc.Name
				return &rec, nil
			}
		}
	}

	if err := p.limiter.Wait(ctx, p.provider); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	rec, err := p.extractor.Extract(ctx, doc.URL, doc.Name, text, candidates)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if data, err := json.Marshal(rec); err == nil {
			_ = p.cache.Set(key, data, 0)
		}
	}

	return rec, nil
}

// organize matches one record and performs the move/report side effects
func (p *Pipeline) organize(ctx context.Context, pr pair, reg *registry.Registry, report *model.RunReport) error {
	outcome := p.matcher.Match(pr.rec, reg)
	claim := outcome.Claim

	groupingURL, err := p.groupings.Ensure(ctx, claim.Label)
	if err != nil {
		return fmt.Errorf("ensure grouping: %w", err)
	}
	claim.GroupingURL = groupingURL

	if outcome.Created {
		if err := p.groupings.WriteMeta(ctx, groupingURL, claim.Meta(p.now())); err != nil {
			return fmt.Errorf("write sidecar: %w", err)
		}
		// Visible to all subsequent records in this batch
		reg.Insert(claim)
	}

	storedName := store.StoredName(pr.rec.Category, pr.doc.Name)
	if _, err := p.groupings.MoveDocument(ctx, pr.doc, groupingURL, storedName); err != nil {
		return fmt.Errorf("relocate document: %w", err)
	}

	if err := p.reports.Append(ctx, groupingURL, pr.rec, storedName); err != nil {
		// The document is already filed; a report failure should not
		// strand it back in the source
		fmt.Fprintf(os.Stderr, "Warning: report append failed for %s: %v\n", pr.doc.Name, err)
	}

	report.Organized++
	if outcome.Created {
		report.ClaimsCreated++
	} else {
		report.ClaimsMatched++
	}
	report.Outcomes = append(report.Outcomes, model.DocumentOutcome{
		SourceName: pr.doc.Name,
		Status:     model.OutcomeOrganized,
		ClaimLabel: claim.Label,
		NewClaim:   outcome.Created,
	})
	return nil
}

// skip records a contained per-document failure. The document remains in
// the source location for a future run.
func (p *Pipeline) skip(report *model.RunReport, doc store.Document, err error) {
	if p.config.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", doc.Name, err)
	}
	report.Skipped++
	report.Outcomes = append(report.Outcomes, model.DocumentOutcome{
		SourceName: doc.Name,
		Status:     model.OutcomeSkipped,
		Error:      err.Error(),
	})
}
