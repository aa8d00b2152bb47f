package feed

import (
	"bytes"
	"errors"
	"log/slog"

	readability "codeberg.org/readeck/go-readability"
)

// Extractor pulls a readable article body out of downloaded page HTML for
// items retained without inline content. Failures surface as ExtractError so
// the download task can mark the item failed without retrying it.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", &ExtractError{Cause: errors.New("empty document")}
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", &ExtractError{Cause: err}
	}

	if article.Content == "" {
		return "", &ExtractError{Cause: errors.New("no readable content in document")}
	}

	slog.Debug("Article body extracted",
		"title", article.Title,
		"content_length", len(article.Content))

	return article.Content, nil
}
