package providers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	if cat.Len() != 10 {
		t.Fatalf("default catalog has %d providers, want 10", cat.Len())
	}

	cridem, ok := cat.ByID("cridem")
	if !ok {
		t.Fatal("cridem missing")
	}
	if cridem.Encoding != "iso-8859-1" || !cridem.ResolveImages || !cridem.IsFeed() {
		t.Fatalf("cridem = %+v", cridem)
	}

	ami, ok := cat.ByID("AMI-AR")
	if !ok {
		t.Fatal("ami-ar lookup should be case-insensitive")
	}
	if ami.Listing == nil || ami.Listing.ItemSelector != ".item-inner" || !ami.ResolveImages {
		t.Fatalf("ami-ar = %+v", ami)
	}
	if ami.Language != domain.LanguageAR {
		t.Fatalf("ami-ar language = %q", ami.Language)
	}
}

func TestCatalogListIsCopy(t *testing.T) {
	cat := DefaultCatalog()
	list := cat.List()
	list[0].Name = "changed"
	list[8].Listing.Limit = 99
	again := cat.List()
	if again[0].Name == "changed" || again[8].Listing.Limit == 99 {
		t.Fatal("List must not expose internal state")
	}
}

func TestNewCatalogValidation(t *testing.T) {
	cases := []struct {
		name string
		p    Provider
		want string
	}{
		{"missing id", Provider{Name: "x", Type: ProviderTypeFeed, SourceURL: "https://a.mr"}, "id is required"},
		{"missing name", Provider{ID: "x", Type: ProviderTypeFeed, SourceURL: "https://a.mr"}, "name is required"},
		{"bad type", Provider{ID: "x", Name: "x", Type: "sitemap", SourceURL: "https://a.mr"}, "not supported"},
		{"relative url", Provider{ID: "x", Name: "x", Type: ProviderTypeFeed, SourceURL: "/rss"}, "absolute"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.p)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}

	p := Provider{ID: "a", Name: "A", Type: ProviderTypeFeed, SourceURL: "https://a.mr/rss"}
	if _, err := NewCatalog(p, p); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate ids: err = %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Setenv("FEED_HOST", "news.example")
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	content := `providers:
  - id: Example
    name: Example
    type: feed
    source_url: https://${FEED_HOST}/rss
    language: ar
    headers:
      X-Test: "1"
      "": ignored
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	p, ok := cat.ByID("example")
	if !ok {
		t.Fatal("example provider missing")
	}
	if p.SourceURL != "https://news.example/rss" || p.Language != domain.LanguageAR {
		t.Fatalf("provider = %+v", p)
	}
	if len(p.Headers) != 1 || Headers(p)["X-Test"] != "1" {
		t.Fatalf("headers = %+v", p.Headers)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"providers": []}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCatalog(empty); err == nil {
		t.Fatal("expected error for empty providers file")
	}
}

func TestFetcherRegistry(t *testing.T) {
	reg := DefaultFetcherRegistry(nil, Options{})

	f, err := reg.FetcherFor(Provider{ID: "x", Type: "FEED"})
	if err != nil || f.ID() != ProviderTypeFeed {
		t.Fatalf("feed fetcher: %v, %v", f, err)
	}
	f, err = reg.FetcherFor(Provider{ID: "x", Type: ProviderTypeHTMLListing})
	if err != nil || f.ID() != ProviderTypeHTMLListing {
		t.Fatalf("listing fetcher: %v, %v", f, err)
	}
	if _, err := reg.FetcherFor(Provider{ID: "x"}); err == nil {
		t.Fatal("expected error for empty type")
	}
	if _, err := reg.FetcherFor(Provider{ID: "x", Type: "sitemap"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
