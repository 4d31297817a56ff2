package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains the primary store parameters shared by every service.
type Common struct {
	StoreURI        string
	MongoDatabase   string
	MongoCollection string
	SourcesFile     string
	ConnectRetries  int
}

// Ingester configures the feed polling service.
type Ingester struct {
	Common
	Interval       time.Duration
	Concurrency    int
	FetchTimeout   time.Duration
	FetchMaxBytes  int64
	DedupeCapacity int
	DedupeTTL      time.Duration
	MetricsAddr    string
	// KafkaBrokers is empty when article events are disabled.
	KafkaBrokers []string
	KafkaTopic   string
}

// Indexer configures the event consumer that fills the replica store.
type Indexer struct {
	Common
	ReplicaStoreURI string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaConsumer   string
	DedupeCapacity  int
	DedupeTTL       time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Trends configures the keyword trend job.
type Trends struct {
	Common
	Interval       time.Duration
	History        time.Duration
	RecentWindow   time.Duration
	MinLen         int
	TopOverall     int
	TopPerCategory int
}

// DLQTopic is the dead-letter topic paired with topic.
func (c *Indexer) DLQTopic() string {
	return c.KafkaTopic + "_dlq"
}

// EventsEnabled reports whether the ingester publishes article events.
func (c *Ingester) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func loadCommon() (Common, error) {
	c := Common{
		StoreURI:        getEnv("STORE_URI", "mongodb://mongo:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "xml_rss"),
		MongoCollection: getEnv("MONGO_COLLECTION", "articles"),
		SourcesFile:     strings.TrimSpace(os.Getenv("SOURCES_FILE")),
		ConnectRetries:  getInt("STORE_CONNECT_RETRIES", 10),
	}
	if c.ConnectRetries < 0 {
		return Common{}, fmt.Errorf("STORE_CONNECT_RETRIES cannot be negative")
	}
	return c, nil
}

// LoadIngester builds an Ingester config from environment variables.
func LoadIngester() (*Ingester, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Ingester{
		Common:         common,
		Interval:       getDuration("INGEST_INTERVAL", "15m"),
		Concurrency:    getInt("INGEST_CONCURRENCY", 1),
		FetchTimeout:   getDuration("FETCH_TIMEOUT", "20s"),
		FetchMaxBytes:  int64(getInt("FETCH_MAX_BYTES", 10<<20)),
		DedupeCapacity: getInt("DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("DEDUPE_TTL", "24h"),
		MetricsAddr:    getEnv("METRICS_ADDR", "0.0.0.0:9100"),
		KafkaBrokers:   splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "articles"),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("INGEST_INTERVAL must be positive")
	}
	if c.Concurrency <= 0 {
		return nil, fmt.Errorf("INGEST_CONCURRENCY must be positive")
	}
	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.FetchMaxBytes <= 0 {
		return nil, fmt.Errorf("FETCH_MAX_BYTES must be positive")
	}
	if c.DedupeCapacity < 0 {
		return nil, fmt.Errorf("DEDUPE_CAPACITY cannot be negative")
	}

	return c, nil
}

// LoadIndexer builds an Indexer config from environment variables.
func LoadIndexer() (*Indexer, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Indexer{
		Common:          common,
		ReplicaStoreURI: getEnv("REPLICA_STORE_URI", "es://elasticsearch:9200/articles"),
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "articles"),
		KafkaConsumer:   getEnv("KAFKA_CONSUMER_GROUP", "articles-indexer"),
		DedupeCapacity:  getInt("DEDUPE_CAPACITY", 20000),
		DedupeTTL:       getDuration("DEDUPE_TTL", "24h"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &API{
		Common:      common,
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 50),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 500),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadTrends builds a Trends config from environment variables.
func LoadTrends() (*Trends, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Trends{
		Common:         common,
		Interval:       getDuration("TRENDS_INTERVAL", "1h"),
		History:        getDuration("TRENDS_HISTORY", "720h"),
		RecentWindow:   getDuration("TRENDS_RECENT_WINDOW", "168h"),
		MinLen:         getInt("TRENDS_MIN_LEN", 2),
		TopOverall:     getInt("TRENDS_TOP_OVERALL", 2000),
		TopPerCategory: getInt("TRENDS_TOP_PER_CATEGORY", 500),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("TRENDS_INTERVAL must be positive")
	}
	if c.RecentWindow <= 0 || c.History <= c.RecentWindow {
		return nil, fmt.Errorf("TRENDS_HISTORY must exceed a positive TRENDS_RECENT_WINDOW")
	}
	if c.MinLen < 1 {
		return nil, fmt.Errorf("TRENDS_MIN_LEN must be positive")
	}
	if c.TopOverall <= 0 || c.TopPerCategory <= 0 {
		return nil, fmt.Errorf("TRENDS_TOP_OVERALL and TRENDS_TOP_PER_CATEGORY must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDuration accepts Go durations plus a "d" suffix for whole days.
func getDuration(key, fallback string) time.Duration {
	d, err := parseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := parseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDuration(raw string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("parse days %q: %w", raw, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}
