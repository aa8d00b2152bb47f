package feed

import (
	"time"
)

// Canonical feed representation, produced once per fetch by the Parser.
// Item order follows the source document and is not guaranteed chronological.

type Feed struct {
	Title       string
	Description string
	Link        string
	FeedURL     string
	Image       *Image
	Items       []Item

	// Average gap between posts in hours, stored as the feed's next poll
	// interval. Defaults to 1 when fewer than two items carry dates.
	AvgPostInterval int
}

type Item struct {
	ID          string // dedup key: id/guid else link, never re-derived
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	PublishedAt time.Time
	Tags        []string // normalized, deduplicated, sorted
	Image       *Image
	Media       []Media
}

type Image struct {
	URL    string
	Width  int
	Height int
}

type MediaKind string

const (
	MediaImage   MediaKind = "image"
	MediaVideo   MediaKind = "video"
	MediaAudio   MediaKind = "audio"
	MediaUnknown MediaKind = "unknown"
)

type Media struct {
	URL  string
	Kind MediaKind
}

// Configuration types, loaded from YAML files in the feeds directory.

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RetentionLimit  int  `yaml:"retention_limit"` // max retained items
	Timeout         int  `yaml:"timeout"`         // seconds
	DownloadContent bool `yaml:"download_content"`
}
