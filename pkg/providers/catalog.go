package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"

	"gopkg.in/yaml.v3"
)

const defaultListingLimit = 10

// Catalog is an immutable, ordered set of providers.
type Catalog struct {
	providers []Provider
}

// NewCatalog sanitizes and validates providers and returns them as a catalog.
func NewCatalog(providers ...Provider) (Catalog, error) {
	out := make([]Provider, 0, len(providers))
	seen := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		p = sanitizeProvider(p)
		if err := validateProvider(p); err != nil {
			return Catalog{}, fmt.Errorf("providers[%d]: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return Catalog{}, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return Catalog{providers: out}, nil
}

// List returns the providers in declaration order. The slice is a copy.
func (c Catalog) List() []Provider {
	out := make([]Provider, len(c.providers))
	for i, p := range c.providers {
		out[i] = cloneProvider(p)
	}
	return out
}

// Len returns the number of providers.
func (c Catalog) Len() int { return len(c.providers) }

// ByID looks a provider up by id.
func (c Catalog) ByID(id string) (Provider, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range c.providers {
		if p.ID == id {
			return cloneProvider(p), true
		}
	}
	return Provider{}, false
}

func cloneProvider(p Provider) Provider {
	if p.Headers != nil {
		h := make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			h[k] = v
		}
		p.Headers = h
	}
	if p.Listing != nil {
		l := *p.Listing
		p.Listing = &l
	}
	return p
}

type catalogFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// LoadCatalog loads providers from a YAML or JSON file. Environment variables in the file
// are expanded before decoding.
func LoadCatalog(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Catalog{}, errors.New("providers file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return Catalog{}, fmt.Errorf("read providers file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(raw)))

	var cf catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(expanded, &cf)
	default:
		err = yaml.Unmarshal(expanded, &cf)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("decode providers file: %w", err)
	}
	if len(cf.Providers) == 0 {
		return Catalog{}, errors.New("providers file contains no providers entries")
	}

	return NewCatalog(cf.Providers...)
}

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.SourceURL = strings.TrimSpace(p.SourceURL)
	p.Language = domain.ParseLanguage(string(p.Language))
	p.Encoding = strings.ToLower(strings.TrimSpace(p.Encoding))
	p.UserAgent = strings.TrimSpace(p.UserAgent)
	p.Excerpt = strings.TrimSpace(p.Excerpt)

	if len(p.Headers) > 0 {
		h := make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			key, val := strings.TrimSpace(k), strings.TrimSpace(v)
			if key == "" || val == "" {
				continue
			}
			h[key] = val
		}
		p.Headers = h
	}

	if p.Type == ProviderTypeHTMLListing {
		l := ListingConfig{}
		if p.Listing != nil {
			l = *p.Listing
		}
		l.ItemSelector = strings.TrimSpace(l.ItemSelector)
		l.LinkSelector = strings.TrimSpace(l.LinkSelector)
		if l.ItemSelector == "" {
			l.ItemSelector = ".item-inner"
		}
		if l.LinkSelector == "" {
			l.LinkSelector = "h2 a"
		}
		if l.Limit < 0 {
			l.Limit = 0
		}
		p.Listing = &l
		// Listing stubs carry no image; resolution is the only way to get one.
		p.ResolveImages = true
	}
	return p
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for provider %q", p.ID)
	}
	switch p.Type {
	case ProviderTypeFeed, ProviderTypeHTMLListing:
	default:
		return fmt.Errorf("type %q not supported for provider %q", p.Type, p.ID)
	}
	u, err := url.Parse(p.SourceURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("source_url %q is not an absolute http(s) url for provider %q", p.SourceURL, p.ID)
	}
	return nil
}

// DefaultCatalog returns the outlets the harvester ships with.
func DefaultCatalog() Catalog {
	c, err := NewCatalog(defaultProviders()...)
	if err != nil {
		panic(fmt.Sprintf("providers: invalid default catalog: %v", err))
	}
	return c
}

func defaultProviders() []Provider {
	return []Provider{
		{
			ID:            "cridem",
			Name:          "Cridem",
			Type:          ProviderTypeFeed,
			SourceURL:     "http://cridem.org/rss.php",
			Language:      domain.LanguageFR,
			Encoding:      "iso-8859-1",
			ResolveImages: true,
		},
		{
			ID:        "essahraa-fr",
			Name:      "Essahraa",
			Type:      ProviderTypeFeed,
			SourceURL: "https://essahraa.net/fr/rss",
			Language:  domain.LanguageFR,
		},
		{
			ID:        "essahraa-ar",
			Name:      "الصحراء",
			Type:      ProviderTypeFeed,
			SourceURL: "https://www.essahraa.net/rss.xml",
			Language:  domain.LanguageAR,
		},
		{
			ID:            "lecalame",
			Name:          "Le Calame",
			Type:          ProviderTypeFeed,
			SourceURL:     "http://lecalame.info/?q=rss.xml",
			Language:      domain.LanguageFR,
			ResolveImages: true,
		},
		{
			ID:        "kassataya",
			Name:      "Kassataya",
			Type:      ProviderTypeFeed,
			SourceURL: "https://kassataya.com/feed",
			Language:  domain.LanguageFR,
		},
		{
			ID:        "saharamedias-fr",
			Name:      "Sahara Medias",
			Type:      ProviderTypeFeed,
			SourceURL: "https://saharamedias.net/fr/feed",
			Language:  domain.LanguageFR,
		},
		{
			ID:        "alakhbar",
			Name:      "الأخبار",
			Type:      ProviderTypeFeed,
			SourceURL: "https://alakhbar.info/?q=rss.xml",
			Language:  domain.LanguageAR,
		},
		{
			ID:        "saharamedias-ar",
			Name:      "صحراء ميدياس",
			Type:      ProviderTypeFeed,
			SourceURL: "https://www.saharamedias.net/feed",
			Language:  domain.LanguageAR,
		},
		{
			ID:        "ami-fr",
			Name:      "AMI",
			Type:      ProviderTypeHTMLListing,
			SourceURL: "https://ami.mr/fr",
			Language:  domain.LanguageFR,
			Excerpt:   "Agence Mauritanienne d'Information - Officiel",
		},
		{
			ID:        "ami-ar",
			Name:      "AMI",
			Type:      ProviderTypeHTMLListing,
			SourceURL: "https://ami.mr/ar",
			Language:  domain.LanguageAR,
			Excerpt:   "Agence Mauritanienne d'Information - Officiel",
		},
	}
}
