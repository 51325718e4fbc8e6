package fetch

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries fetchers in priority order, returning the first usable page.
// A page that is empty or looks like an anti-bot interstitial moves on to
// the next fetcher. When none is usable, the first interstitial seen is
// returned; failing that, the last fetcher error; an empty page only when
// every fetcher answered with one.
type Chain struct {
	fetchers []Fetcher
}

// NewChain creates a Chain. Fetchers are tried in order.
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// Name implements Fetcher.
func (c *Chain) Name() string {
	names := make([]string, len(c.fetchers))
	for i, f := range c.fetchers {
		names[i] = f.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Fetch implements Fetcher.
func (c *Chain) Fetch(ctx context.Context, url string, opts Options) (string, error) {
	if len(c.fetchers) == 0 {
		return "", fetchErr(url, eris.New("fetch: no fetchers configured"))
	}

	var (
		lastErr  error
		fallback string
	)
	for _, f := range c.fetchers {
		if err := ctx.Err(); err != nil {
			return "", fetchErr(url, err)
		}

		content, err := f.Fetch(ctx, url, opts)
		if err != nil {
			zap.L().Debug("fetch: fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if strings.TrimSpace(content) == "" {
			zap.L().Debug("fetch: empty content, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", url),
			)
			continue
		}

		if blocked, bt := DetectBlock(content); blocked {
			zap.L().Info("fetch: blocked page detected, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", url),
				zap.String("block_type", string(bt)),
			)
			if fallback == "" {
				fallback = content
			}
			continue
		}

		return content, nil
	}

	switch {
	case fallback != "":
		return fallback, nil
	case lastErr != nil:
		return "", fetchErr(url, lastErr)
	default:
		return "", nil
	}
}
