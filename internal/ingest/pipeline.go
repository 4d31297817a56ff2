package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/vnnews-radar/backend/internal/feedparser"
	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
	"github.com/DeafMist/vnnews-radar/backend/internal/metrics"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

// Sources lists the feeds of one cycle.
type Sources interface {
	ListSources() []models.FeedSource
}

// Fetcher retrieves one feed document.
type Fetcher interface {
	Fetch(ctx context.Context, src models.FeedSource) ([]byte, error)
}

// Parser turns a feed document into entries.
type Parser interface {
	Parse(content []byte) ([]feedparser.RawEntry, error)
}

// Normalizer maps an entry onto an Article.
type Normalizer interface {
	Normalize(entry feedparser.RawEntry, src models.FeedSource) (models.Article, error)
}

// Gate stores an Article unless it is already known.
type Gate interface {
	UpsertIfNew(ctx context.Context, a models.Article) (bool, error)
}

// Publisher announces newly stored Articles.
type Publisher interface {
	Publish(ctx context.Context, cycleID string, a models.Article) error
}

// Deps wires the pipeline stages.
type Deps struct {
	Sources    Sources
	Fetcher    Fetcher
	Parser     Parser
	Normalizer Normalizer
	Gate       Gate
	// Publisher is optional.
	Publisher Publisher
	Logger    *slog.Logger
	// Concurrency bounds the number of feeds processed at once; values
	// below 1 mean sequential processing.
	Concurrency int
}

// Pipeline runs ingestion cycles.
type Pipeline struct {
	sources     Sources
	fetcher     Fetcher
	parser      Parser
	normalizer  Normalizer
	gate        Gate
	publisher   Publisher
	log         *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewPipeline constructs a Pipeline.
func NewPipeline(deps Deps) *Pipeline {
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		sources:     deps.Sources,
		fetcher:     deps.Fetcher,
		parser:      deps.Parser,
		normalizer:  deps.Normalizer,
		gate:        deps.Gate,
		publisher:   deps.Publisher,
		log:         logger.OrDiscard(deps.Logger),
		concurrency: concurrency,
		now:         time.Now,
	}
}

// SourceReport summarizes one feed within a cycle.
type SourceReport struct {
	Source     string `json:"source"`
	Entries    int    `json:"entries"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Invalid    int    `json:"invalid"`
	Failed     int    `json:"failed"`
	Err        error  `json:"-"`
}

// CycleReport summarizes one ingestion cycle.
type CycleReport struct {
	ID       string         `json:"id"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Sources  []SourceReport `json:"sources"`
}

// Inserted returns the number of new Articles stored during the cycle.
func (r CycleReport) Inserted() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Inserted
	}
	return total
}

// FailedSources returns the number of feeds that could not be fetched or parsed
// or whose processing was cut short.
func (r CycleReport) FailedSources() int {
	total := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			total++
		}
	}
	return total
}

// RunCycle processes every source once. It never fails as a whole: problems
// are logged and reported per source.
func (p *Pipeline) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.NewString(), Started: p.now().UTC()}
	sources := p.sources.ListSources()
	report.Sources = make([]SourceReport, len(sources))

	log := p.log.With(slog.String("cycle_id", report.ID))
	log.Info("ingestion cycle started", slog.Int("sources", len(sources)), slog.Int("concurrency", p.concurrency))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			report.Sources[i] = p.processSource(ctx, log, report.ID, src)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = p.now().Sub(report.Started)
	metrics.CycleCompleted(report.Duration, p.now())
	log.Info("ingestion cycle finished",
		slog.Int("inserted", report.Inserted()),
		slog.Int("failed_sources", report.FailedSources()),
		slog.Duration("duration", report.Duration),
	)
	return report
}

func (p *Pipeline) processSource(ctx context.Context, log *slog.Logger, cycleID string, src models.FeedSource) SourceReport {
	rep := SourceReport{Source: src.URL}
	log = log.With(slog.String("source", src.URL))

	if err := ctx.Err(); err != nil {
		rep.Err = err
		return rep
	}

	body, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		metrics.FeedFetched("fetch_error")
		log.Warn("fetch feed failed", slog.Any("err", err))
		rep.Err = err
		return rep
	}

	entries, err := p.parser.Parse(body)
	if err != nil {
		metrics.FeedFetched("parse_error")
		log.Warn("parse feed failed", slog.Any("err", err))
		rep.Err = err
		return rep
	}
	metrics.FeedFetched("ok")
	rep.Entries = len(entries)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			break
		}

		article, err := p.normalizer.Normalize(entry, src)
		if err != nil {
			metrics.EntryProcessed("invalid")
			log.Warn("skip entry", slog.Any("err", err))
			rep.Invalid++
			continue
		}

		inserted, err := p.gate.UpsertIfNew(ctx, article)
		if err != nil {
			metrics.EntryProcessed("store_error")
			log.Error("store entry failed, skipping rest of feed",
				slog.String("guid", article.GUID),
				slog.Any("err", err),
			)
			rep.Failed++
			rep.Err = err
			break
		}
		if !inserted {
			metrics.EntryProcessed("duplicate")
			rep.Duplicates++
			continue
		}

		metrics.EntryProcessed("inserted")
		metrics.ArticleInserted(article.ArrangedCategory)
		rep.Inserted++
		log.Debug("stored article", slog.String("guid", article.GUID), slog.String("title", article.Title))
		p.publish(ctx, log, cycleID, article)
	}

	log.Info("feed processed",
		slog.Int("entries", rep.Entries),
		slog.Int("inserted", rep.Inserted),
		slog.Int("duplicates", rep.Duplicates),
		slog.Int("invalid", rep.Invalid),
	)
	return rep
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, cycleID string, a models.Article) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.Publish(ctx, cycleID, a)
	metrics.EventPublished(err == nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("publish article event failed", slog.String("guid", a.GUID), slog.Any("err", err))
	}
}
