// Package trends scores keyword phrases that gained popularity recently.
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/processing"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

// Options tune one computation.
type Options struct {
	History        time.Duration
	RecentWindow   time.Duration
	MinLen         int
	TopOverall     int
	TopPerCategory int
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		History:        30 * 24 * time.Hour,
		RecentWindow:   7 * 24 * time.Hour,
		MinLen:         2,
		TopOverall:     2000,
		TopPerCategory: 500,
	}
}

type counts struct {
	recent     map[string]int
	historical map[string]int
}

func newCounts() *counts {
	return &counts{recent: make(map[string]int), historical: make(map[string]int)}
}

func (c *counts) add(phrases []string, recent bool) {
	target := c.historical
	if recent {
		target = c.recent
	}
	for _, p := range phrases {
		target[p]++
	}
}

// Compute returns the overall KeywordSet followed by one set per arranged
// category that has recent keywords. Articles downloaded before
// now-History are ignored.
func Compute(articles []models.Article, now time.Time, opts Options) []models.KeywordSet {
	now = now.UTC()
	since := now.Add(-opts.History)
	recentSince := now.Add(-opts.RecentWindow)

	overall := newCounts()
	byCategory := make(map[string]*counts)

	for _, a := range articles {
		if opts.History > 0 && a.DownloadedAt.Before(since) {
			continue
		}
		phrases := append(processing.Phrases(a.Title, opts.MinLen), processing.Phrases(a.Description, opts.MinLen)...)
		if len(phrases) == 0 {
			continue
		}
		recent := !a.DownloadedAt.Before(recentSince)
		overall.add(phrases, recent)

		if a.ArrangedCategory == "" || a.ArrangedCategory == models.UnknownCategory {
			continue
		}
		c, ok := byCategory[a.ArrangedCategory]
		if !ok {
			c = newCounts()
			byCategory[a.ArrangedCategory] = c
		}
		c.add(phrases, recent)
	}

	sets := []models.KeywordSet{{Timestamp: now, Keywords: rank(overall, opts.TopOverall)}}

	categories := lo.Keys(byCategory)
	sort.Strings(categories)
	for _, cat := range categories {
		keywords := rank(byCategory[cat], opts.TopPerCategory)
		if len(keywords) == 0 {
			continue
		}
		sets = append(sets, models.KeywordSet{Category: cat, Timestamp: now, Keywords: keywords})
	}
	return sets
}

// Score is the recent count when the keyword has no history, otherwise the
// relative growth over the historical count.
func Score(recent, historical int) float64 {
	if historical == 0 {
		return float64(recent)
	}
	return float64(recent-historical) / float64(historical)
}

func rank(c *counts, limit int) []models.Keyword {
	out := make([]models.Keyword, 0, len(c.recent))
	for kw, r := range c.recent {
		if r == 0 {
			continue
		}
		out = append(out, models.Keyword{Keyword: kw, Count: Score(r, c.historical[kw])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type source interface {
	ArticlesSince(ctx context.Context, since time.Time) ([]models.Article, error)
	SaveKeywords(ctx context.Context, sets []models.KeywordSet) error
}

// Job loads the history window, computes the sets and saves them.
type Job struct {
	store source
	opts  Options
	log   *slog.Logger
	now   func() time.Time
}

// NewJob builds a Job over s.
func NewJob(s source, opts Options, log *slog.Logger) *Job {
	return &Job{store: s, opts: opts, log: logger.OrDiscard(log), now: time.Now}
}

var _ source = (store.Store)(nil)

// RunOnce performs one computation and returns the saved sets.
func (j *Job) RunOnce(ctx context.Context) ([]models.KeywordSet, error) {
	now := j.now().UTC()
	articles, err := j.store.ArticlesSince(ctx, now.Add(-j.opts.History))
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}

	sets := Compute(articles, now, j.opts)
	if err := j.store.SaveKeywords(ctx, sets); err != nil {
		return nil, fmt.Errorf("save keyword sets: %w", err)
	}

	j.log.Info("keyword sets saved",
		slog.Int("articles", len(articles)),
		slog.Int("sets", len(sets)),
		slog.Int("overall_keywords", len(sets[0].Keywords)),
	)
	return sets, nil
}
