package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/DeafMist/vnnews-radar/backend/internal/feedparser"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/processing"
	"github.com/DeafMist/vnnews-radar/backend/internal/registry"
)

var (
	// ErrNoIdentity means the entry has neither a guid nor a link.
	ErrNoIdentity = errors.New("entry has neither guid nor link")
	// ErrNoTitle means the entry title is empty after decoding.
	ErrNoTitle = errors.New("entry has no title")
)

// NormalizeError reports an entry that cannot become an Article.
type NormalizeError struct {
	Entry feedparser.RawEntry
	Err   error
}

func (e *NormalizeError) Error() string {
	id := e.Entry.GUID
	if id == "" {
		id = e.Entry.Link
	}
	if id == "" {
		id = strings.TrimSpace(e.Entry.Title)
	}
	return fmt.Sprintf("normalize entry %q: %v", id, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// Tables supplies the category and publisher lookups.
type Tables interface {
	Category(feedURL string) string
	Publisher(rawURL string) (registry.Publisher, bool)
	DefaultImage(rawURL string) string
}

// Normalizer maps raw entries onto Articles.
type Normalizer struct {
	tables Tables
}

// New returns a Normalizer backed by the given lookup tables.
func New(tables Tables) *Normalizer {
	return &Normalizer{tables: tables}
}

// Normalize builds the canonical Article for entry. DownloadedAt is left for
// the store gate to set.
func (n *Normalizer) Normalize(entry feedparser.RawEntry, src models.FeedSource) (models.Article, error) {
	guid := strings.TrimSpace(entry.GUID)
	link := strings.TrimSpace(entry.Link)
	if guid == "" {
		guid = link
	}
	if guid == "" {
		return models.Article{}, &NormalizeError{Entry: entry, Err: ErrNoIdentity}
	}

	title := processing.DecodeEntities(entry.Title)
	if title == "" {
		return models.Article{}, &NormalizeError{Entry: entry, Err: ErrNoTitle}
	}

	a := models.Article{
		SourceURL:        src.URL,
		GUID:             guid,
		Link:             link,
		Title:            title,
		Description:      processing.PlainText(entry.Description),
		PublishedAt:      entry.Published,
		ImageURL:         n.image(entry, src, link),
		RawCategory:      registry.RawCategory(src.URL),
		ArrangedCategory: n.tables.Category(src.URL),
	}

	if p, ok := n.tables.Publisher(src.URL); ok {
		a.Publisher = p.Name
	} else if p, ok := n.tables.Publisher(link); ok {
		a.Publisher = p.Name
	}

	// gofeed reads "GMT+7" as a zone name without offset, so its parse is
	// only a fallback for formats ParseTime does not know.
	if ts := processing.ParseTime(entry.Published); !ts.IsZero() {
		a.PublishedTime = &ts
	} else if entry.PublishedParsed != nil && !entry.PublishedParsed.IsZero() {
		ts := entry.PublishedParsed.UTC()
		a.PublishedTime = &ts
	}

	return a, nil
}

// image applies the fallback order: explicit image element, first <img> in
// the item markup, publisher placeholder, generic placeholder.
func (n *Normalizer) image(entry feedparser.RawEntry, src models.FeedSource, link string) string {
	for _, candidate := range entry.Images {
		if u := resolve(candidate, link); u != "" {
			return u
		}
	}

	for _, markup := range []string{entry.Description, entry.Content} {
		if u := resolve(firstImage(markup), link); u != "" {
			return u
		}
	}

	if _, ok := n.tables.Publisher(src.URL); ok {
		return n.tables.DefaultImage(src.URL)
	}
	return n.tables.DefaultImage(link)
}

func firstImage(markup string) string {
	if !strings.Contains(markup, "<img") && !strings.Contains(markup, "<IMG") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var found string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src", "data-original"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(strings.TrimSpace(v), "data:") {
				found = strings.TrimSpace(v)
				return false
			}
		}
		return true
	})
	return found
}

// resolve makes ref absolute against base. Protocol-relative references get
// https. Unusable references yield "".
func resolve(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	return b.ResolveReference(u).String()
}
