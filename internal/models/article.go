package models

import "time"

// UnknownCategory is used when a feed or URL does not map to a known category.
const UnknownCategory = "unknown"

// Categories is the closed set of arranged category slugs.
var Categories = []string{
	"the-gioi",
	"thoi-su",
	"kinh-te",
	"giai-tri",
	"the-thao",
	"phap-luat-chinh-tri",
	"giao-duc",
	"suc-khoe-doi-song",
	"du-lich",
	"khoa-hoc-cong-nghe",
	"xe",
	"van-hoa",
	"doi-song",
}

// FeedSource is one configured RSS endpoint.
type FeedSource struct {
	URL              string `json:"url" yaml:"url"`
	RawCategory      string `json:"rawCategory" yaml:"rawCategory"`
	ArrangedCategory string `json:"arrangedCategory" yaml:"arrangedCategory"`
}

// Article is the canonical record persisted for every distinct feed item.
// Field names follow the documents written by the legacy downloader so
// existing collections stay readable.
type Article struct {
	SourceURL        string     `json:"url" bson:"url"`
	GUID             string     `json:"guid" bson:"guid"`
	Link             string     `json:"link" bson:"link"`
	Title            string     `json:"title" bson:"title"`
	Description      string     `json:"description" bson:"description"`
	PublishedAt      string     `json:"pubDate" bson:"pubDate"`
	PublishedTime    *time.Time `json:"publishedTime,omitempty" bson:"publishedTime,omitempty"`
	ImageURL         string     `json:"img" bson:"img"`
	RawCategory      string     `json:"articlesCategory" bson:"articlesCategory"`
	ArrangedCategory string     `json:"arrangedCategory" bson:"arrangedCategory"`
	Publisher        string     `json:"publisher,omitempty" bson:"publisher,omitempty"`
	DownloadedAt     time.Time  `json:"downloadedAt" bson:"downloadedAt"`
}

// Keyword is one scored entry of a KeywordSet.
type Keyword struct {
	Keyword string  `json:"keyword" bson:"keyword"`
	Count   float64 `json:"count" bson:"count"`
}

// KeywordSet is the output of one trend computation, optionally scoped to a category.
type KeywordSet struct {
	Category  string    `json:"category,omitempty" bson:"category,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Keywords  []Keyword `json:"keywords" bson:"keywords"`
}
