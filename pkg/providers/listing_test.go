package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
)

func listingPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="item-inner"><h2><a href="/fr/node/%d"> Story %d </a></h2></div>`, i, i)
	}
	b.WriteString(`<div class="item-inner"><h2>no anchor</h2></div>`)
	b.WriteString("</body></html>")
	return b.String()
}

func TestListingFetcherCapsAndResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage(15)))
	}))
	defer srv.Close()

	cat, err := NewCatalog(Provider{
		ID:        "ami-fr",
		Name:      "AMI",
		Type:      ProviderTypeHTMLListing,
		SourceURL: srv.URL + "/fr",
		Excerpt:   "Agence Mauritanienne d'Information - Officiel",
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	cfg, _ := cat.ByID("ami-fr")

	f := NewListingFetcher(httpclient.NewRestyClient(2*time.Second), Options{Clock: fixedClock})
	articles, err := f.Fetch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != defaultListingLimit {
		t.Fatalf("got %d articles, want %d", len(articles), defaultListingLimit)
	}
	first := articles[0]
	if first.Title != "Story 1" || first.Link != srv.URL+"/fr/node/1" {
		t.Fatalf("first = %+v", first)
	}
	if !first.PublishedAt.Equal(fixedNow) || first.ImageURL != "" || first.Excerpt != cfg.Excerpt {
		t.Fatalf("first = %+v", first)
	}
	if first.Language != domain.LanguageFR {
		t.Fatalf("language = %q", first.Language)
	}
}

func TestListingFetcherCustomLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage(5)))
	}))
	defer srv.Close()

	f := NewListingFetcher(httpclient.NewRestyClient(2*time.Second), Options{})
	stubs := f.ListArticles(context.Background(), Provider{
		ID:        "x",
		SourceURL: srv.URL,
		Listing:   &ListingConfig{ItemSelector: ".item-inner", LinkSelector: "h2 a", Limit: 3},
	})
	if len(stubs) != 3 {
		t.Fatalf("got %d stubs, want 3", len(stubs))
	}
}

func TestListingFetcherFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewListingFetcher(httpclient.NewRestyClient(2*time.Second), Options{})
	articles, err := f.Fetch(context.Background(), Provider{ID: "x", SourceURL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch returned error %v, want nil", err)
	}
	if len(articles) != 0 {
		t.Fatalf("got %d articles, want 0", len(articles))
	}
}
