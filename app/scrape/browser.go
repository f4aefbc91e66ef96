package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const defaultBrowserTimeout = 30 * time.Second

type BrowserOptions struct {
	UserAgent     string
	InstallDriver bool // download the driver and chromium on first use
}

// Browser renders pages in headless chromium before extracting the article,
// for sources that build their content with JavaScript. Chromium is started
// lazily on the first scrape and shared by all later ones.
type Browser struct {
	opts BrowserOptions

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewBrowser(opts BrowserOptions) *Browser {
	return &Browser{opts: opts}
}

func (b *Browser) start() (playwright.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil && b.browser.IsConnected() {
		return b.browser, nil
	}

	if b.pw == nil {
		if b.opts.InstallDriver {
			if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
				return nil, fmt.Errorf("could not install playwright: %w", err)
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("could not start playwright: %w", err)
		}
		b.pw = pw
	}

	browser, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	b.browser = browser

	slog.Info("Headless browser started")
	return browser, nil
}

func (b *Browser) Scrape(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("item has no link")
	}

	browser, err := b.start()
	if err != nil {
		return "", err
	}

	timeout := defaultBrowserTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return "", ctx.Err()
		}
	}

	pageOpts := playwright.BrowserNewPageOptions{}
	if b.opts.UserAgent != "" {
		pageOpts.UserAgent = playwright.String(b.opts.UserAgent)
	}

	page, err := browser.NewPage(pageOpts)
	if err != nil {
		return "", fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("could not load page: %w", err)
	}
	if resp != nil && !resp.Ok() {
		return "", fmt.Errorf("HTTP error: %d %s", resp.Status(), resp.StatusText())
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("could not read page content: %w", err)
	}

	return extractArticle([]byte(html), pageURL)
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			slog.Warn("Failed to close browser", "error", err)
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			return fmt.Errorf("could not stop playwright: %w", err)
		}
		b.pw = nil
	}
	return nil
}
