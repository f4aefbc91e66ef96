package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Raw stores the downloaded document as-is.
type Raw struct {
	getter httpGetter
}

func NewRaw(httpClient *http.Client, userAgent string) *Raw {
	return &Raw{getter: newHTTPGetter(httpClient, userAgent)}
}

func (r *Raw) Scrape(ctx context.Context, pageURL string) (string, error) {
	p, err := r.getter.get(ctx, pageURL)
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(string(p.body))
	if content == "" {
		return "", fmt.Errorf("page is empty")
	}
	return content, nil
}
