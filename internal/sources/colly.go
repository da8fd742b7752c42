package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/standardize"
)

// CollyAdapter scrapes listing cards from an HTML marketplace using the CSS
// selectors in its SourceConfig. Every extracted field runs through the
// standardize package; records without a resolvable listing URL are dropped
// as malformed.
type CollyAdapter struct {
	config    SourceConfig
	userAgent string
	logger    zerolog.Logger
}

func NewCollyAdapter(cfg SourceConfig, logger zerolog.Logger) *CollyAdapter {
	return &CollyAdapter{
		config:    cfg,
		userAgent: "carlookout-aggregator/0.1 (+https://carlookout.example)",
		logger:    logger.With().Str("source", cfg.Name).Logger(),
	}
}

func (a *CollyAdapter) ID() string { return a.config.Name }

// Search crawls the source's search results for the query, following
// pagination up to MaxPages, and returns normalized listings. If ctx is
// cancelled mid-crawl the listings collected so far are returned.
func (a *CollyAdapter) Search(ctx context.Context, query string, _ listings.FilterSet, limit int) ([]listings.RawListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchURL, err := a.searchURL(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSource, err)
	}

	allowedDomain, err := extractDomain(a.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSource, err)
	}

	var (
		mu        sync.Mutex
		results   []listings.RawListing
		dropped   int
		pagesSeen int
	)

	maxPages := a.config.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	c := colly.NewCollector(
		colly.UserAgent(a.userAgent),
		colly.AllowedDomains(allowedDomain),
		// Binds in-flight requests to the caller's context so cancellation
		// aborts the fetch itself, not just the callbacks.
		colly.StdlibContext(ctx),
		// robots.txt is respected by default in Colly; do NOT use IgnoreRobotsTxt.
	)
	if deadline, ok := ctx.Deadline(); ok {
		c.SetRequestTimeout(time.Until(deadline))
	}

	delay := time.Second
	if a.config.RateLimitPerSec > 0 {
		delay = time.Duration(float64(time.Second) / a.config.RateLimitPerSec)
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: delay}); err != nil {
		a.logger.Warn().Err(err).Msg("colly: failed to set rate limit rule")
	}

	sel := a.config.Selectors
	c.OnHTML(sel.ListingList, func(h *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}

		mu.Lock()
		full := limit > 0 && len(results) >= limit
		mu.Unlock()
		if full {
			return
		}

		raw := listings.RawListing{
			SourceID:  a.config.Name,
			FetchedAt: time.Now().UTC(),
		}

		if sel.Title != "" {
			raw.Title = strings.TrimSpace(h.ChildText(sel.Title))
		}
		if sel.Price != "" {
			raw.Price = standardize.Price(h.ChildText(sel.Price))
		}
		if sel.Mileage != "" {
			raw.Mileage = standardize.Mileage(h.ChildText(sel.Mileage))
		}
		if sel.Year != "" {
			raw.Year = standardize.Year(h.ChildText(sel.Year))
		}
		if sel.Location != "" {
			raw.Location = strings.TrimSpace(h.ChildText(sel.Location))
		}
		if sel.URL != "" {
			href := h.ChildAttr(sel.URL, "href")
			if href != "" {
				raw.ViewItemURL = h.Request.AbsoluteURL(href)
			}
		}
		if sel.Image != "" {
			src := h.ChildAttr(sel.Image, "src")
			if src != "" {
				raw.ImageURLs = []string{h.Request.AbsoluteURL(src)}
			}
		}

		// The listing URL doubles as the per-source identity.
		raw.ListingID = listingIDFromURL(raw.ViewItemURL)
		applyTitle(&raw)
		raw.Features = standardize.ExtractFeatures(raw.Title)

		if !raw.Valid() || raw.Title == "" {
			mu.Lock()
			dropped++
			mu.Unlock()
			return
		}

		mu.Lock()
		results = append(results, raw)
		mu.Unlock()
	})

	if sel.Pagination != "" {
		c.OnHTML(sel.Pagination, func(h *colly.HTMLElement) {
			if ctx.Err() != nil {
				return
			}

			mu.Lock()
			current := pagesSeen
			full := limit > 0 && len(results) >= limit
			mu.Unlock()
			if current >= maxPages || full {
				return
			}

			href := h.Attr("href")
			if href == "" {
				href = h.ChildAttr("a", "href")
			}
			if href == "" {
				return
			}

			nextURL := h.Request.AbsoluteURL(href)
			if nextURL == "" {
				return
			}
			if err := c.Visit(nextURL); err != nil {
				a.logger.Warn().Err(err).Str("url", nextURL).Msg("colly: failed to queue pagination URL")
			}
		})
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}

		mu.Lock()
		pagesSeen++
		reachedMax := pagesSeen > maxPages
		mu.Unlock()

		if reachedMax {
			r.Abort()
			return
		}

		a.logger.Debug().
			Str("url", r.URL.String()).
			Int("page", pagesSeen).
			Msg("colly: visiting page")
	})

	c.OnError(func(r *colly.Response, err error) {
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn().
			Str("url", r.Request.URL.String()).
			Int("status", r.StatusCode).
			Err(err).
			Msg("colly: request error")
	})

	// c.Visit is synchronous with async callbacks.
	if err := c.Visit(searchURL); err != nil {
		if ctx.Err() != nil {
			return results, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrSource, err)
	}
	c.Wait()

	if dropped > 0 {
		a.logger.Warn().Int("dropped", dropped).Msg("dropped malformed listings")
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchURL appends the query as a ?q= parameter to the configured base URL.
func (a *CollyAdapter) searchURL(query string) (string, error) {
	u, err := url.Parse(a.config.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// extractDomain parses rawURL and returns just the hostname (no port).
func extractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// listingIDFromURL derives a stable per-source identity from the listing's
// detail URL: the last non-empty path segment. Returns "" when no usable
// segment exists, which marks the record malformed.
func listingIDFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// applyTitle fills year/make/model/trim from the listing title when the
// dedicated selectors left them empty. Titles follow the common marketplace
// shape "2020 Honda Civic EX".
func applyTitle(l *listings.RawListing) {
	fields := strings.Fields(l.Title)
	if len(fields) == 0 {
		return
	}

	i := 0
	if y := standardize.Year(fields[0]); y != nil {
		if l.Year == nil {
			l.Year = y
		}
		i++
	}
	if i < len(fields) {
		if l.Make == "" {
			l.Make = fields[i]
		}
		i++
	}
	if i < len(fields) {
		if l.Model == "" {
			l.Model = fields[i]
		}
		i++
	}
	if i < len(fields) && l.Trim == "" {
		l.Trim = strings.Join(fields[i:], " ")
	}
}
