package feedparser

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// ErrNoItems is the cause of a ParseError for documents without any item.
var ErrNoItems = errors.New("feed has no items")

// ParseError reports content that is not a usable feed document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RawEntry is one feed item before normalization. Every field may be empty.
type RawEntry struct {
	GUID        string
	Link        string
	Title       string
	Description string
	Content     string
	Published   string
	// PublishedParsed is set when the feed library understood the date.
	PublishedParsed *time.Time
	// Images holds explicit image elements in document order.
	Images     []string
	Categories []string
}

// Parser converts raw feed documents into entries. It is safe for
// concurrent use; every Parse call gets its own gofeed parser because
// gofeed keeps per-document state.
type Parser struct{}

// New returns a Parser for RSS and Atom documents.
func New() *Parser {
	return &Parser{}
}

// Parse decodes content. The XML declaration decides the character set.
func (p *Parser) Parse(content []byte) ([]RawEntry, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, &ParseError{Err: errors.New("empty document")}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(feed.Items) == 0 {
		return nil, &ParseError{Err: ErrNoItems}
	}

	entries := make([]RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toEntry(item))
	}
	return entries, nil
}

func toEntry(item *gofeed.Item) RawEntry {
	e := RawEntry{
		GUID:        strings.TrimSpace(item.GUID),
		Link:        strings.TrimSpace(item.Link),
		Title:       item.Title,
		Description: item.Description,
		Content:     item.Content,
		Published:   strings.TrimSpace(item.Published),
		Categories:  item.Categories,
	}
	if e.Published == "" {
		e.Published = strings.TrimSpace(item.Updated)
	}
	if item.PublishedParsed != nil {
		e.PublishedParsed = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		e.PublishedParsed = item.UpdatedParsed
	}
	if e.Link == "" && len(item.Links) > 0 {
		e.Link = strings.TrimSpace(item.Links[0])
	}
	e.Images = images(item)
	return e
}

// images collects explicit image references: a plain <image> child, the
// item image, image enclosures and media:thumbnail / media:content.
func images(item *gofeed.Item) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	if v, ok := item.Custom["image"]; ok {
		add(v)
	}
	if item.Image != nil {
		add(item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && isImage(enc.Type, enc.URL) {
			add(enc.URL)
		}
	}
	for _, name := range []string{"thumbnail", "content"} {
		for _, m := range mediaElements(item.Extensions, name) {
			if name == "content" && !isImage(m.Attrs["type"], m.Attrs["url"]) && m.Attrs["medium"] != "image" {
				continue
			}
			add(m.Attrs["url"])
		}
	}
	return out
}

func mediaElements(exts ext.Extensions, name string) []ext.Extension {
	media, ok := exts["media"]
	if !ok {
		return nil
	}
	out := append([]ext.Extension(nil), media[name]...)
	for _, group := range media["group"] {
		out = append(out, group.Children[name]...)
	}
	return out
}

func isImage(mimeType, rawURL string) bool {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return true
	}
	if mimeType != "" {
		return false
	}
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch path.Ext(u) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg":
		return true
	}
	return false
}
