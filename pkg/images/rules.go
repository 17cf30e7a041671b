package images

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Method records which heuristic produced an image. It is for logs only.
type Method string

const (
	MethodFeedField      Method = "feed-field"
	MethodOGMeta         Method = "og-meta"
	MethodTwitterMeta    Method = "twitter-meta"
	MethodPlatformRule   Method = "platform-rule"
	MethodGenericContent Method = "generic-content"
	MethodNone           Method = "none"
)

// ExtractionResult is the outcome of resolving one article page. A zero ImageURL with
// MethodNone is a normal result.
type ExtractionResult struct {
	ImageURL string
	Method   Method
}

// Found reports whether an image was located.
func (r ExtractionResult) Found() bool { return r.ImageURL != "" }

func none() ExtractionResult { return ExtractionResult{Method: MethodNone} }

// RuleKind tags the variant carried by a Rule.
type RuleKind int

const (
	// RuleMetaTag reads the content attribute of the first matching meta tag.
	RuleMetaTag RuleKind = iota + 1
	// RuleSelector reads attributes of the first element matching each selector.
	RuleSelector
	// RuleRankedCandidates collects every upload under a container and ranks them.
	RuleRankedCandidates
)

// Rule is one image-location heuristic.
type Rule struct {
	Kind   RuleKind
	Method Method

	// Selectors are tried in order (meta and selector rules).
	Selectors []string
	// Attrs is the attribute preference for selector rules.
	Attrs []string

	// Containers are tried in order; the first present one bounds the ranked search.
	Containers []string
	// PathMarker is the upload path every ranked candidate must contain.
	PathMarker string
	// DerivativeMarker identifies resized copies, ranked below originals.
	DerivativeMarker string
	// Exclude drops ranked candidates containing any of these substrings.
	Exclude []string
}

// Platform binds host patterns to the rules that understand that outlet's markup.
type Platform struct {
	Name  string
	Hosts []string
	Rules []Rule
}

// RuleSet maps hosts to platform rules and appends the shared generic rules.
type RuleSet struct {
	platforms []Platform
	generic   []Rule
}

// NewRuleSet builds a rule table.
func NewRuleSet(platforms []Platform, generic []Rule) *RuleSet {
	return &RuleSet{
		platforms: append([]Platform(nil), platforms...),
		generic:   append([]Rule(nil), generic...),
	}
}

// RulesFor returns the ordered rules for host: the matching platform's rules, then the
// generic ones.
func (rs *RuleSet) RulesFor(host string) []Rule {
	host = strings.ToLower(strings.TrimSpace(host))
	var out []Rule
	for _, p := range rs.platforms {
		if p.matches(host) {
			out = append(out, p.Rules...)
			break
		}
	}
	return append(out, rs.generic...)
}

// Extract applies the rules for pageURL's host to doc.
func (rs *RuleSet) Extract(doc *goquery.Document, pageURL *url.URL) ExtractionResult {
	if doc == nil || pageURL == nil {
		return none()
	}
	for _, rule := range rs.RulesFor(pageURL.Hostname()) {
		if img := rule.apply(doc, pageURL); img != "" {
			return ExtractionResult{ImageURL: img, Method: rule.Method}
		}
	}
	return none()
}

func (p Platform) matches(host string) bool {
	for _, pattern := range p.Hosts {
		pattern = strings.ToLower(pattern)
		if host == pattern || strings.HasSuffix(host, "."+pattern) {
			return true
		}
	}
	return false
}

func (r Rule) apply(doc *goquery.Document, base *url.URL) string {
	switch r.Kind {
	case RuleMetaTag:
		return r.applyMeta(doc, base)
	case RuleSelector:
		return r.applySelector(doc, base)
	case RuleRankedCandidates:
		return r.applyRanked(doc, base)
	default:
		return ""
	}
}

func (r Rule) applyMeta(doc *goquery.Document, base *url.URL) string {
	for _, sel := range r.Selectors {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		if abs := absolute(content, base); IsValidImageURL(abs) {
			return abs
		}
	}
	return ""
}

func (r Rule) applySelector(doc *goquery.Document, base *url.URL) string {
	attrs := r.Attrs
	if len(attrs) == 0 {
		attrs = []string{"src"}
	}
	for _, sel := range r.Selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		for _, attr := range attrs {
			val, ok := node.Attr(attr)
			if !ok {
				continue
			}
			if abs := absolute(val, base); IsValidImageURL(abs) {
				return abs
			}
		}
	}
	return ""
}

type rankedCandidate struct {
	url        string
	derivative bool
	order      int
}

func (r Rule) applyRanked(doc *goquery.Document, base *url.URL) string {
	var container *goquery.Selection
	for _, sel := range r.Containers {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			container = s
			break
		}
	}
	if container == nil {
		return ""
	}

	var (
		candidates []rankedCandidate
		seen       = make(map[string]struct{})
	)
	container.Find("img, a[href]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "data-src", "src"} {
			val, ok := s.Attr(attr)
			if !ok {
				continue
			}
			abs := absolute(val, base)
			if !r.acceptsRanked(abs) {
				continue
			}
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			candidates = append(candidates, rankedCandidate{
				url:        abs,
				derivative: r.DerivativeMarker != "" && strings.Contains(abs, r.DerivativeMarker),
				order:      len(candidates),
			})
		}
	})
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].derivative != candidates[j].derivative {
			return !candidates[i].derivative
		}
		return candidates[i].order < candidates[j].order
	})
	return candidates[0].url
}

func (r Rule) acceptsRanked(abs string) bool {
	if abs == "" || (r.PathMarker != "" && !strings.Contains(abs, r.PathMarker)) {
		return false
	}
	lower := strings.ToLower(abs)
	for _, ex := range r.Exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}
	return IsValidImageURL(abs)
}

func absolute(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if base == nil {
		return raw
	}
	return ResolveURL(raw, base.String())
}

var lazyAttrs = []string{"data-src", "data-lazy-src", "data-original", "src"}

// GenericRules are shared by every outlet and run after platform rules.
func GenericRules() []Rule {
	return []Rule{
		{
			Kind:      RuleMetaTag,
			Method:    MethodOGMeta,
			Selectors: []string{`meta[property="og:image"]`, `meta[property="og:image:url"]`},
		},
		{
			Kind:      RuleMetaTag,
			Method:    MethodTwitterMeta,
			Selectors: []string{`meta[name="twitter:image"]`, `meta[property="twitter:image"]`},
		},
		{
			Kind:   RuleSelector,
			Method: MethodGenericContent,
			Selectors: []string{
				"article img",
				"main img",
				".post-content img",
				".entry-content img",
				"#article img",
			},
			Attrs: lazyAttrs,
		},
	}
}

// DefaultPlatforms holds the outlet-specific rules.
func DefaultPlatforms() []Platform {
	return []Platform{
		{
			Name:  "cridem",
			Hosts: []string{"cridem.org"},
			Rules: []Rule{
				{Kind: RuleSelector, Method: MethodPlatformRule, Selectors: []string{"img.focus-photo"}, Attrs: []string{"src"}},
			},
		},
		{
			Name:  "ami",
			Hosts: []string{"ami.mr"},
			Rules: []Rule{
				// The thumbnail anchor links to the full-size upload.
				{Kind: RuleSelector, Method: MethodPlatformRule, Selectors: []string{"a.post-thumbnail"}, Attrs: []string{"href"}},
				{Kind: RuleSelector, Method: MethodPlatformRule, Selectors: []string{"a.post-thumbnail img"}, Attrs: []string{"data-src", "src"}},
			},
		},
		{
			Name:  "lecalame",
			Hosts: []string{"lecalame.info"},
			Rules: []Rule{
				{
					Kind:             RuleRankedCandidates,
					Method:           MethodPlatformRule,
					Containers:       []string{".node-content", ".field-items", ".region-content", "#content", "article", "main"},
					PathMarker:       "/sites/default/files/",
					DerivativeMarker: "/styles/",
					Exclude:          []string{"logo", "icon", "banner"},
				},
			},
		},
		{
			Name:  "kassataya",
			Hosts: []string{"kassataya.com"},
			Rules: []Rule{
				{Kind: RuleSelector, Method: MethodPlatformRule, Selectors: []string{".single-featured-image img"}, Attrs: []string{"src", "data-src"}},
			},
		},
		{
			Name:  "essahraa",
			Hosts: []string{"essahraa.net"},
			Rules: []Rule{
				{Kind: RuleSelector, Method: MethodPlatformRule, Selectors: []string{".field-name-field-image img, .field-item span.caption img"}, Attrs: []string{"src"}},
			},
		},
		{
			Name:  "alakhbar",
			Hosts: []string{"alakhbar.info"},
			Rules: []Rule{
				{Kind: RuleSelector, Method: MethodPlatformRule, Selectors: []string{".field-name-field-image img, .field-type-image img"}, Attrs: []string{"src"}},
			},
		},
		{
			Name:  "saharamedias",
			Hosts: []string{"saharamedias.net"},
			Rules: []Rule{
				{
					Kind:      RuleSelector,
					Method:    MethodPlatformRule,
					Selectors: []string{".featured img, .featured-image img, .post-thumbnail img, .entry-content img"},
					Attrs:     []string{"src", "data-src"},
				},
			},
		},
	}
}

// DefaultRuleSet combines DefaultPlatforms and GenericRules.
func DefaultRuleSet() *RuleSet {
	return NewRuleSet(DefaultPlatforms(), GenericRules())
}
