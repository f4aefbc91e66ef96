package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// Readability downloads a page and keeps only its main article content.
type Readability struct {
	getter httpGetter
}

func NewReadability(httpClient *http.Client, userAgent string) *Readability {
	return &Readability{getter: newHTTPGetter(httpClient, userAgent)}
}

func (r *Readability) Scrape(ctx context.Context, pageURL string) (string, error) {
	p, err := r.getter.get(ctx, pageURL)
	if err != nil {
		return "", err
	}

	if !strings.Contains(p.contentType, "text/html") {
		return "", fmt.Errorf("content type is not HTML: %s", p.contentType)
	}

	return extractArticle(p.body, pageURL)
}

func extractArticle(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content))

	return article.Content, nil
}
