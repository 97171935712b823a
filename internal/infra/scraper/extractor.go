package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
)

const (
	DefaultMinContentChars = 200
	DefaultMaxContentChars = 15000

	truncatedMarker = "[content truncated]"
	minDedupeLen    = 10
)

const noiseSelector = `script, style, noscript, template, svg, canvas, iframe, object, embed, head, [hidden], [aria-hidden="true"]`

var (
	finePrintAttr = regexp.MustCompile(`(?i)disclaimer|fine-?print|legal|terms|footer`)
	termsLink     = regexp.MustCompile(`(?i)terms|t&c|t-c|conditions|legal|disclaimer|eligibility|requirements|privacy|policy|agreement`)
)

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "td": true, "th": true, "ul": true,
}

var finePrintTags = map[string]bool{
	"div": true, "section": true, "p": true, "span": true, "aside": true,
}

// Extractor pulls visible text, fine print and terms links out of HTML.
type Extractor struct {
	MinChars int
	MaxChars int
}

func NewExtractor(minChars, maxChars int) *Extractor {
	if minChars <= 0 {
		minChars = DefaultMinContentChars
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxContentChars
	}
	return &Extractor{MinChars: minChars, MaxChars: maxChars}
}

func (e *Extractor) Parse(page *analysis.Page) (*analysis.Document, error) {
	base := page.FinalURL
	if base == "" {
		base = page.URL
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, &analysis.ExtractionError{Kind: analysis.ExtractionUnreadable, Err: err}
	}

	out := &analysis.Document{URL: base}
	out.Title = title(doc, page.HTML, base)
	out.Links = termsLinks(doc, base)

	doc.Find(noiseSelector).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	out.Body = visibleText(root.Nodes...)
	out.FinePrint = finePrint(doc, out.Body)
	return out, nil
}

func title(doc *goquery.Document, raw, base string) string {
	if u, err := url.Parse(base); err == nil {
		rp := readability.NewParser()
		if article, err := rp.Parse(strings.NewReader(raw), u); err == nil {
			if t := collapse(article.Title); t != "" {
				return t
			}
		}
	}
	return collapse(doc.Find("title").First().Text())
}

// termsLinks returns absolute http(s) links that look like terms pages, in
// document order, without duplicates or the page itself.
func termsLinks(doc *goquery.Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	self := stripFragment(baseURL)
	seen := map[string]bool{self: true}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if !termsLink.MatchString(href) && !termsLink.MatchString(strings.ToLower(s.Text())) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		key := stripFragment(abs)
		if seen[key] {
			return
		}
		seen[key] = true
		links = append(links, key)
	})
	return links
}

func stripFragment(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// finePrint collects footer, <small> and legal-looking blocks plus any body
// line carrying a footnote marker. Blocks nested inside an already collected
// block are skipped.
func finePrint(doc *goquery.Document, body string) []string {
	picked := map[*html.Node]bool{}
	var sections []string

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if !isFinePrint(n) || hasPickedAncestor(n, picked) {
			return
		}
		picked[n] = true
		if t := visibleText(n); t != "" {
			sections = append(sections, t)
		}
	})

	for _, line := range strings.Split(body, "\n") {
		if strings.ContainsAny(line, "*†‡") {
			sections = append(sections, line)
		}
	}
	return sections
}

func isFinePrint(n *html.Node) bool {
	switch n.Data {
	case "footer", "small":
		return true
	}
	if !finePrintTags[n.Data] {
		return false
	}
	for _, a := range n.Attr {
		if (a.Key == "class" || a.Key == "id") && finePrintAttr.MatchString(a.Val) {
			return true
		}
	}
	return false
}

func hasPickedAncestor(n *html.Node, picked map[*html.Node]bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if picked[p] {
			return true
		}
	}
	return false
}

// visibleText renders the text of nodes in document order, one line per
// block element, with whitespace collapsed.
func visibleText(nodes ...*html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if n.Data == "br" {
				b.WriteByte('\n')
				return
			}
			if blockTags[n.Data] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if l := collapse(line); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text merges fine print, the main body and related pages into one prompt
// text. Repeated sentences are kept once. Headers do not count towards
// MinChars.
func (e *Extractor) Text(main *analysis.Document, related ...*analysis.Document) (string, error) {
	seen := map[string]bool{}
	informative := 0

	var parts []string
	add := func(header, content string) {
		content = dedupe(content, seen)
		if content == "" {
			return
		}
		informative += utf8.RuneCountInString(content)
		parts = append(parts, header+"\n"+content)
	}

	add("=== FINE PRINT ===", strings.Join(main.FinePrint, "\n"))
	header := "=== MAIN PAGE ==="
	if main.Title != "" {
		header = fmt.Sprintf("=== MAIN PAGE: %s (%s) ===", main.Title, main.URL)
	} else if main.URL != "" {
		header = fmt.Sprintf("=== MAIN PAGE (%s) ===", main.URL)
	}
	add(header, main.Body)
	for _, doc := range related {
		if doc == nil {
			continue
		}
		add(fmt.Sprintf("=== TERMS PAGE (%s) ===", doc.URL), doc.Body)
	}

	if informative < e.MinChars {
		return "", &analysis.ExtractionError{
			Kind:  analysis.ExtractionInsufficientContent,
			Chars: informative,
			Min:   e.MinChars,
		}
	}
	return truncate(strings.Join(parts, "\n\n"), e.MaxChars), nil
}

// dedupe drops sentences already in seen. Short fragments are always kept.
func dedupe(content string, seen map[string]bool) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		var kept []string
		for _, sentence := range sentences(line) {
			if utf8.RuneCountInString(sentence) > minDedupeLen {
				key := strings.ToLower(sentence)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			kept = append(kept, sentence)
		}
		if len(kept) > 0 {
			lines = append(lines, strings.Join(kept, " "))
		}
	}
	return strings.Join(lines, "\n")
}

// sentences splits after '.', '!' or '?' followed by whitespace, so amounts
// like "$14.99" stay intact.
func sentences(line string) []string {
	line = collapse(line)
	if line == "" {
		return nil
	}
	var out []string
	start := 0
	runes := []rune(line)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				out = append(out, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "\n\n" + truncatedMarker
}
