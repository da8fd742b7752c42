package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlTestConfig(baseURL string) SourceConfig {
	return SourceConfig{
		Name:            "craigslist",
		BaseURL:         baseURL,
		Kind:            "html",
		Enabled:         true,
		TrustLevel:      3,
		RateLimitPerSec: 1000, // no meaningful delay in tests
		Timeout:         Duration(5 * time.Second),
		MaxPages:        5,
		Selectors: SelectorConfig{
			ListingList: "div.result-row",
			Title:       "h3.title",
			Price:       "span.price",
			Mileage:     "span.mileage",
			Location:    "span.hood",
			URL:         "a.link",
			Image:       "img.thumb",
		},
	}
}

func TestCollyAdapterSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!DOCTYPE html><html><body>
<div class="results">
  <div class="result-row">
    <h3 class="title">2020 Honda Civic EX</h3>
    <span class="price">$20,500</span>
    <span class="mileage">30,400 miles</span>
    <span class="hood">Oakland</span>
    <a class="link" href="/cto/d/civic/7712345678.html">details</a>
    <img class="thumb" src="/images/civic.jpg" />
  </div>
  <div class="result-row">
    <h3 class="title">2018 Toyota Camry SE, sunroof, backup camera</h3>
    <span class="price">$17,000</span>
    <span class="mileage">62k miles</span>
    <a class="link" href="/cto/d/camry/7798765432.html">details</a>
  </div>
  <div class="result-row">
    <h3 class="title">2015 Ford F-150</h3>
    <span class="price">$24,000</span>
    <!-- no detail link: malformed, dropped -->
  </div>
</div>
</body></html>`)
	}))
	defer ts.Close()

	adapter := NewCollyAdapter(htmlTestConfig(ts.URL), zerolog.Nop())
	got, err := adapter.Search(context.Background(), "used cars", emptyFilters(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	civic := got[0]
	assert.Equal(t, "craigslist", civic.SourceID)
	assert.Equal(t, "7712345678.html", civic.ListingID)
	assert.Equal(t, "Honda", civic.Make)
	assert.Equal(t, "Civic", civic.Model)
	assert.Equal(t, "EX", civic.Trim)
	assert.Equal(t, 2020, *civic.Year)
	assert.Equal(t, 20500.0, *civic.Price)
	assert.Equal(t, 30400, *civic.Mileage)
	assert.Equal(t, "Oakland", civic.Location)
	assert.Contains(t, civic.ViewItemURL, "/cto/d/civic/")
	require.Len(t, civic.ImageURLs, 1)
	assert.False(t, civic.FetchedAt.IsZero())

	camry := got[1]
	assert.Equal(t, 62000, *camry.Mileage)
	assert.Equal(t, []string{"backup_camera", "sunroof"}, camry.Features)
}

func TestCollyAdapterLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>`)
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, `<div class="result-row">
  <h3 class="title">2020 Honda Civic</h3>
  <a class="link" href="/d/%d.html">x</a>
</div>`, i)
		}
		fmt.Fprint(w, `</body></html>`)
	}))
	defer ts.Close()

	adapter := NewCollyAdapter(htmlTestConfig(ts.URL), zerolog.Nop())
	got, err := adapter.Search(context.Background(), "civic", emptyFilters(), 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCollyAdapterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewCollyAdapter(htmlTestConfig("http://example.com"), zerolog.Nop())
	_, err := adapter.Search(ctx, "civic", emptyFilters(), 0)
	assert.Error(t, err)
}

// A server that stalls past the context deadline must not stall the crawl:
// the fetch itself is bound to ctx, so Search returns once the deadline hits.
func TestCollyAdapterDeadlineBoundsSlowServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
		fmt.Fprint(w, `<html><body></body></html>`)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	adapter := NewCollyAdapter(htmlTestConfig(ts.URL), zerolog.Nop())

	started := time.Now()
	got, err := adapter.Search(ctx, "civic", emptyFilters(), 0)
	elapsed := time.Since(started)

	require.Less(t, elapsed, time.Second, "a stalled server must not hold the crawl past the deadline")
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestListingIDFromURL(t *testing.T) {
	assert.Equal(t, "7712345678.html", listingIDFromURL("https://x.org/cto/d/civic/7712345678.html"))
	assert.Equal(t, "abc", listingIDFromURL("https://x.org/abc/"))
	assert.Equal(t, "", listingIDFromURL("https://x.org/"))
	assert.Equal(t, "", listingIDFromURL(""))
}

func TestApplyTitle(t *testing.T) {
	l := listingWithTitle("2019 Subaru Outback Limited AWD")
	applyTitle(&l)
	assert.Equal(t, 2019, *l.Year)
	assert.Equal(t, "Subaru", l.Make)
	assert.Equal(t, "Outback", l.Model)
	assert.Equal(t, "Limited AWD", l.Trim)

	// no leading year: tokens shift
	l = listingWithTitle("Mazda CX-5")
	applyTitle(&l)
	assert.Nil(t, l.Year)
	assert.Equal(t, "Mazda", l.Make)
	assert.Equal(t, "CX-5", l.Model)

	// already-populated fields are kept, later tokens still line up
	l = listingWithTitle("2019 Subaru Outback")
	l.Make = "Subaru of America"
	applyTitle(&l)
	assert.Equal(t, "Subaru of America", l.Make)
	assert.Equal(t, "Outback", l.Model)
}
