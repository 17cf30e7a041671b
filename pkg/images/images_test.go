package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"jpeg", "https://site.mr/uploads/photo.jpg", true},
		{"query string", "https://site.mr/a/photo.webp?itok=abc", true},
		{"upper case ext", "https://site.mr/a/PHOTO.PNG", true},
		{"cloudinary no ext", "https://res.cloudinary.com/demo/image/upload/sample", true},
		{"drupal files", "https://lecalame.info/sites/default/files/pic", true},
		{"too short", "a.jpg", false},
		{"placeholder", "https://site.mr/placeholder.jpg", false},
		{"logo", "https://site.mr/img/Logo-main.png", false},
		{"default thumb", "https://site.mr/default-thumb.gif", false},
		{"no extension", "https://site.mr/article/12", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.url)
			if tc.ok && err != nil {
				t.Fatalf("Check(%q) = %v, want nil", tc.url, err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("Check(%q) = nil, want rejection", tc.url)
				}
				if !errors.Is(err, domain.ErrValidationRejected) {
					t.Fatalf("Check(%q) error %v does not wrap ErrValidationRejected", tc.url, err)
				}
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	if got := ResolveURL("/a.jpg", "http://cridem.org/article.php?id=1"); got != "http://cridem.org/a.jpg" {
		t.Fatalf("relative: got %q", got)
	}
	if got := ResolveURL("https://x.mr/a.jpg", "http://cridem.org/"); got != "https://x.mr/a.jpg" {
		t.Fatalf("absolute: got %q", got)
	}
	if got := ResolveURL("  ", "http://cridem.org/"); got != "" {
		t.Fatalf("blank: got %q", got)
	}
}

func extract(t *testing.T, pageURL, html string) ExtractionResult {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return DefaultRuleSet().Extract(doc, u)
}

func TestExtractPrefersLazyAttribute(t *testing.T) {
	html := `<html><body><article><img src="blank.gif" data-src="https://site.mr/real.jpg"></article></body></html>`
	res := extract(t, "https://site.mr/post/1", html)
	if res.ImageURL != "https://site.mr/real.jpg" {
		t.Fatalf("image = %q, want lazy source", res.ImageURL)
	}
	if res.Method != MethodGenericContent {
		t.Fatalf("method = %q, want %q", res.Method, MethodGenericContent)
	}
}

func TestExtractSkipsPlaceholderMeta(t *testing.T) {
	html := `<html><head>
<meta property="og:image" content="https://site.mr/placeholder.png">
<meta name="twitter:image" content="https://site.mr/uploads/story.jpg">
</head><body></body></html>`
	res := extract(t, "https://site.mr/post/2", html)
	if res.ImageURL != "https://site.mr/uploads/story.jpg" || res.Method != MethodTwitterMeta {
		t.Fatalf("got %+v, want twitter image", res)
	}
}

func TestExtractOpenGraphFirst(t *testing.T) {
	html := `<html><head><meta property="og:image" content="/media/cover.jpg"></head>
<body><article><img src="https://site.mr/other.jpg"></article></body></html>`
	res := extract(t, "https://site.mr/post/3", html)
	if res.ImageURL != "https://site.mr/media/cover.jpg" || res.Method != MethodOGMeta {
		t.Fatalf("got %+v, want og image resolved against page", res)
	}
}

func TestExtractPlatformRuleBeatsGeneric(t *testing.T) {
	html := `<html><head><meta property="og:image" content="https://cridem.org/og.jpg"></head>
<body><img class="focus-photo" src="imgs/2024/photo.jpg"></body></html>`
	res := extract(t, "http://cridem.org/C_Info.php?article=1", html)
	if res.ImageURL != "http://cridem.org/imgs/2024/photo.jpg" || res.Method != MethodPlatformRule {
		t.Fatalf("got %+v, want cridem platform image", res)
	}
}

func TestExtractRankedPrefersOriginalUpload(t *testing.T) {
	html := `<html><body><div class="node-content">
<img src="/sites/default/files/logo.png">
<img src="/sites/default/files/styles/large/public/photo.jpg?itok=x1">
<a href="/sites/default/files/photo.jpg">full size</a>
</div></body></html>`
	res := extract(t, "https://www.lecalame.info/?q=node/1", html)
	want := "https://www.lecalame.info/sites/default/files/photo.jpg"
	if res.ImageURL != want {
		t.Fatalf("image = %q, want %q", res.ImageURL, want)
	}
}

func TestExtractRankedFallsBackToDerivative(t *testing.T) {
	html := `<html><body><div class="node-content">
<img src="/sites/default/files/styles/large/public/photo.jpg">
</div></body></html>`
	res := extract(t, "https://lecalame.info/?q=node/2", html)
	if !strings.Contains(res.ImageURL, "/styles/large/") {
		t.Fatalf("image = %q, want derivative", res.ImageURL)
	}
}

func TestExtractNothing(t *testing.T) {
	res := extract(t, "https://site.mr/post/4", `<html><body><p>text</p></body></html>`)
	if res.Found() || res.Method != MethodNone {
		t.Fatalf("got %+v, want none", res)
	}
}

func TestRulesForAppendsGeneric(t *testing.T) {
	rs := DefaultRuleSet()
	generic := len(GenericRules())
	if got := len(rs.RulesFor("unknown.example")); got != generic {
		t.Fatalf("unknown host rules = %d, want %d", got, generic)
	}
	if got := len(rs.RulesFor("www.ami.mr")); got != generic+2 {
		t.Fatalf("ami rules = %d, want %d", got, generic+2)
	}
}

func TestResolverFetchesPage(t *testing.T) {
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.Header.Get("Accept-Language")
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`<html><head><meta property="og:image" content="/img/a.jpg"></head></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewResolver(httpclient.NewRestyClient(2*time.Second), nil)

	res := r.Resolve(context.Background(), srv.URL+"/ok")
	if res.ImageURL != srv.URL+"/img/a.jpg" {
		t.Fatalf("image = %q", res.ImageURL)
	}
	if !strings.HasPrefix(gotLang, "fr-FR") {
		t.Fatalf("Accept-Language = %q", gotLang)
	}

	if res := r.Resolve(context.Background(), srv.URL+"/missing"); res.Method != MethodNone {
		t.Fatalf("non-200 result = %+v, want none", res)
	}
	if res := r.Resolve(context.Background(), "not a url"); res.Method != MethodNone {
		t.Fatalf("invalid url result = %+v, want none", res)
	}
}

func TestGateSpacesCallers(t *testing.T) {
	g := NewGate(40 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := g.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("three waits took %v, want at least two intervals", elapsed)
	}
}

func TestGateHonoursContext(t *testing.T) {
	g := NewGate(time.Hour)
	_ = g.Wait(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
