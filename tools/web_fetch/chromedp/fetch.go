package chromedp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Fetch renders a page in headless Chrome and returns its outer HTML. Used
// for sites that assemble their article body client-side.
type Fetch struct {
	Timeout   time.Duration
	UserAgent string
}

func (f *Fetch) FetchHTML(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}
