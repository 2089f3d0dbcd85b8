package crawler

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html"

	"github.com/vantagehq/marketscope/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// socialPatterns maps platform names to host patterns.
var socialPatterns = map[string]*regexp.Regexp{
	"linkedin":  regexp.MustCompile(`(?i)linkedin\.com`),
	"twitter":   regexp.MustCompile(`(?i)(twitter\.com|x\.com)`),
	"facebook":  regexp.MustCompile(`(?i)facebook\.com`),
	"instagram": regexp.MustCompile(`(?i)instagram\.com`),
	"youtube":   regexp.MustCompile(`(?i)youtube\.com`),
}

// ctaRE matches call-to-action phrasing in link and button text.
var ctaRE = regexp.MustCompile(`(?i)get started|sign up|start free|book demo|schedule|contact|try free|request|download|learn more|buy now|subscribe|join|register|free trial`)

// testimonialClassRE matches class attributes that mark quoted customer
// voice sections.
var testimonialClassRE = regexp.MustCompile(`(?i)testimonial|quote|review`)

// segmentKeywords are the industry and segment terms scanned for in page
// text. Matches feed the segmentation analysis.
var segmentKeywords = []string{
	"healthcare", "financial services", "fintech", "education", "edtech",
	"retail", "ecommerce", "manufacturing", "logistics", "real estate",
	"legal", "insurance", "technology", "saas", "enterprise", "smb",
	"startups", "agencies", "government", "nonprofit", "media",
}

// extractPage parses an HTML document into a structured page record.
func extractPage(body []byte, pageURL string, base *url.URL) (*schemas.PageData, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &schemas.PageData{
		URL:         pageURL,
		SocialLinks: make(map[string]string),
	}
	pageBase, err := url.Parse(pageURL)
	if err != nil {
		pageBase = base
	}

	var rawText strings.Builder
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			if n.Type == html.TextNode {
				if t := strings.TrimSpace(n.Data); t != "" {
					rawText.WriteString(t)
					rawText.WriteByte(' ')
				}
			}
			return true
		}

		switch n.Data {
		case "script":
			if attr(n, "type") == "application/ld+json" {
				page.HasSchema = true
				page.SchemaTypes = append(page.SchemaTypes, schemaTypes(nodeText(n))...)
			}
			return false
		case "style", "noscript":
			return false

		case "title":
			if page.Title == "" {
				page.Title = nodeText(n)
			}
		case "meta":
			switch strings.ToLower(attr(n, "name")) {
			case "description":
				page.MetaDescription = attr(n, "content")
			case "keywords":
				page.MetaKeywords = attr(n, "content")
			case "viewport":
				page.HasViewport = true
			}
		case "h1":
			page.H1Tags = appendText(page.H1Tags, n)
		case "h2":
			page.H2Tags = appendText(page.H2Tags, n)
		case "h3":
			page.H3Tags = appendText(page.H3Tags, n)
		case "p":
			page.Paragraphs = appendText(page.Paragraphs, n)
		case "img":
			page.Images = append(page.Images, schemas.Image{
				Src: resolve(pageBase, attr(n, "src")),
				Alt: attr(n, "alt"),
			})
		case "a":
			extractLink(page, n, pageBase, base)
		case "button":
			if text := nodeText(n); ctaRE.MatchString(text) {
				page.CTAs = append(page.CTAs, schemas.CTA{Text: text})
			}
		case "form":
			page.Forms = append(page.Forms, extractForm(n))
			return false
		case "blockquote":
			addTestimonial(page, nodeText(n))
		default:
			if testimonialClassRE.MatchString(attr(n, "class")) {
				addTestimonial(page, nodeText(n))
				return false
			}
		}
		return true
	})

	page.RawText = strings.TrimSpace(rawText.String())
	return page, nil
}

// extractLink records the link, its internal/external split, social
// platform matches, and CTA phrasing.
func extractLink(page *schemas.PageData, n *html.Node, pageBase, base *url.URL) {
	href := attr(n, "href")
	if href == "" {
		return
	}
	full := resolve(pageBase, href)
	if full == "" {
		return
	}
	page.Links = append(page.Links, full)

	parsed, err := url.Parse(full)
	if err == nil && (parsed.Host == base.Host || parsed.Host == "") {
		page.InternalLinks = append(page.InternalLinks, full)
	} else {
		page.ExternalLinks = append(page.ExternalLinks, full)
	}

	for platform, re := range socialPatterns {
		if re.MatchString(full) {
			page.SocialLinks[platform] = full
		}
	}

	if text := nodeText(n); ctaRE.MatchString(text) {
		page.CTAs = append(page.CTAs, schemas.CTA{Text: text, Href: full})
	}
}

// extractForm captures a form's action, method, and field inventory.
func extractForm(n *html.Node) schemas.Form {
	form := schemas.Form{
		Action: attr(n, "action"),
		Method: strings.ToUpper(attr(n, "method")),
	}
	if form.Method == "" {
		form.Method = "GET"
	}
	walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return true
		}
		switch c.Data {
		case "input", "textarea", "select":
			name := attr(c, "name")
			if name == "" {
				name = attr(c, "placeholder")
			}
			form.Fields = append(form.Fields, schemas.FormField{
				Name:     name,
				Type:     attr(c, "type"),
				Required: hasAttr(c, "required"),
			})
		}
		return true
	})
	return form
}

// schemaTypes pulls @type values out of a JSON-LD block; both single
// objects and arrays appear in the wild.
func schemaTypes(raw string) []string {
	var types []string
	collect := func(v any) {
		if obj, ok := v.(map[string]any); ok {
			if t, ok := obj["@type"].(string); ok {
				types = append(types, t)
			}
		}
	}
	var parsed any
	if err := json.UnmarshalFromString(raw, &parsed); err != nil {
		return nil
	}
	switch v := parsed.(type) {
	case map[string]any:
		collect(v)
	case []any:
		for _, item := range v {
			collect(item)
		}
	}
	return types
}

func addTestimonial(page *schemas.PageData, text string) {
	if len(text) <= 20 {
		return
	}
	if len(text) > 500 {
		text = text[:500]
	}
	page.Testimonials = append(page.Testimonials, text)
}

// classifyPage tags a page by its URL path. The ladder is ordered; the
// first match wins.
func classifyPage(pageURL, rootURL string) string {
	lower := strings.ToLower(pageURL)
	if strings.TrimRight(pageURL, "/") == strings.TrimRight(rootURL, "/") {
		return "homepage"
	}
	switch {
	case strings.Contains(lower, "/pricing"):
		return "pricing"
	case strings.Contains(lower, "/about"), strings.Contains(lower, "/team"), strings.Contains(lower, "/company"):
		return "about"
	case strings.Contains(lower, "/product"), strings.Contains(lower, "/platform"), strings.Contains(lower, "/features"):
		return "product"
	case strings.Contains(lower, "/solution"):
		return "solutions"
	case strings.Contains(lower, "/blog"), strings.Contains(lower, "/posts"):
		return "blog"
	case strings.Contains(lower, "/case-stud"), strings.Contains(lower, "/customer"):
		return "case_study"
	case strings.Contains(lower, "/resource"), strings.Contains(lower, "/guide"), strings.Contains(lower, "/ebook"):
		return "resources"
	case strings.Contains(lower, "/contact"):
		return "contact"
	case strings.Contains(lower, "/demo"), strings.Contains(lower, "/trial"):
		return "conversion"
	case segmentPathRE.MatchString(lower):
		return "segment"
	}
	return "other"
}

// detectSegments scans page text for industry keywords, capped at ten.
func detectSegments(text string) []string {
	lower := strings.ToLower(text)
	var segments []string
	for _, kw := range segmentKeywords {
		if strings.Contains(lower, kw) {
			segments = append(segments, kw)
			if len(segments) == 10 {
				break
			}
		}
	}
	return segments
}

// resolve turns a possibly-relative reference into an absolute URL
// against the page's own base. Unparseable references resolve to "".
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// -- node helpers --

// walk visits nodes depth-first; the visitor returns false to prune the
// subtree.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func appendText(list []string, n *html.Node) []string {
	if t := nodeText(n); t != "" {
		return append(list, t)
	}
	return list
}
