package registry

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

// GenericImage is served for articles without an image whose publisher is unknown.
const GenericImage = "/default-image.jpg"

//go:embed sources.yaml
var defaultSources []byte

var rawCategoryRegex = regexp.MustCompile(`/([^/]+)\.rss$`)

// Publisher describes per-publisher defaults keyed by a hostname pattern.
type Publisher struct {
	Name         string `yaml:"name" json:"name"`
	Host         string `yaml:"host" json:"host"`
	DefaultImage string `yaml:"defaultImage" json:"defaultImage,omitempty"`
}

type file struct {
	Categories yaml.Node   `yaml:"categories"`
	Unmapped   []string    `yaml:"unmapped"`
	Publishers []Publisher `yaml:"publishers"`
}

// Registry is the immutable list of feed sources plus the lookup tables
// derived from it.
type Registry struct {
	sources    []models.FeedSource
	categories map[string]string
	publishers []Publisher
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultSources)
}

// Load reads a registry file. An empty path selects the built-in list.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML. Feeds keep the order they appear in.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	r := &Registry{categories: make(map[string]string)}
	seen := make(map[string]struct{})

	add := func(feedURL, category string) error {
		feedURL = strings.TrimSpace(feedURL)
		if feedURL == "" {
			return nil
		}
		if prev, ok := r.categories[feedURL]; ok && category != models.UnknownCategory && prev != category {
			return fmt.Errorf("feed %s mapped to both %s and %s", feedURL, prev, category)
		}
		if _, ok := seen[feedURL]; ok {
			return nil
		}
		seen[feedURL] = struct{}{}
		if category != models.UnknownCategory {
			r.categories[feedURL] = category
		}
		r.sources = append(r.sources, models.FeedSource{
			URL:              feedURL,
			RawCategory:      RawCategory(feedURL),
			ArrangedCategory: category,
		})
		return nil
	}

	if f.Categories.Kind != 0 {
		if f.Categories.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("categories must be a mapping of slug to feed urls")
		}
		for i := 0; i+1 < len(f.Categories.Content); i += 2 {
			slug := strings.TrimSpace(f.Categories.Content[i].Value)
			if !IsCategory(slug) {
				return nil, fmt.Errorf("unknown category %q", slug)
			}
			var feeds []string
			if err := f.Categories.Content[i+1].Decode(&feeds); err != nil {
				return nil, fmt.Errorf("decode feeds of %s: %w", slug, err)
			}
			for _, feedURL := range feeds {
				if err := add(feedURL, slug); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, feedURL := range f.Unmapped {
		if err := add(feedURL, models.UnknownCategory); err != nil {
			return nil, err
		}
	}

	for _, p := range f.Publishers {
		p.Name = strings.TrimSpace(p.Name)
		p.Host = strings.ToLower(strings.TrimSpace(p.Host))
		if p.Host == "" {
			return nil, fmt.Errorf("publisher %q has no host", p.Name)
		}
		r.publishers = append(r.publishers, p)
	}

	return r, nil
}

// ListSources returns the configured feeds in file order.
func (r *Registry) ListSources() []models.FeedSource {
	out := make([]models.FeedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Category returns the arranged category for an exact feed URL, or "unknown".
func (r *Registry) Category(feedURL string) string {
	if c, ok := r.categories[strings.TrimSpace(feedURL)]; ok {
		return c
	}
	return models.UnknownCategory
}

// Publisher returns the first publisher whose host pattern is contained in
// the hostname of rawURL.
func (r *Registry) Publisher(rawURL string) (Publisher, bool) {
	host := hostname(rawURL)
	if host == "" {
		return Publisher{}, false
	}
	return lo.Find(r.publishers, func(p Publisher) bool {
		return strings.Contains(host, p.Host)
	})
}

// DefaultImage returns the publisher placeholder for rawURL, or GenericImage.
func (r *Registry) DefaultImage(rawURL string) string {
	if p, ok := r.Publisher(rawURL); ok && p.DefaultImage != "" {
		return p.DefaultImage
	}
	return GenericImage
}

// RawCategory derives the source's own category from the feed file name.
func RawCategory(feedURL string) string {
	m := rawCategoryRegex.FindStringSubmatch(strings.TrimSpace(feedURL))
	if len(m) < 2 {
		return models.UnknownCategory
	}
	return m[1]
}

// IsCategory reports whether slug belongs to the closed category set.
func IsCategory(slug string) bool {
	return lo.Contains(models.Categories, slug)
}

func hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
