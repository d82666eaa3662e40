package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// maxBodyBytes caps how much of a page is read.
	maxBodyBytes = 512 * 1024
	// minTextRunes is the least visible text a usable page carries.
	minTextRunes = 30

	localUserAgent = "Mozilla/5.0 (compatible; LeadgenBot/1.0; +https://github.com/sells-group/leadgen-cli)"
)

// LocalScraper fetches HTML directly and reduces it to visible text. It
// costs nothing, so it runs first and walls fall through to the API
// backends.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates a LocalScraper.
func NewLocalScraper() *LocalScraper {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &LocalScraper{client: &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}}
}

// Name implements Scraper.
func (l *LocalScraper) Name() string { return "local_http" }

// Supports implements Scraper.
func (l *LocalScraper) Supports(u string) bool { return isHTTPURL(u) }

// Scrape implements Scraper.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", localUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if b := responseBlock(resp.StatusCode, resp.Header); b != BlockNone {
		return nil, &BlockedError{Backend: l.Name(), Block: b}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}
	page, err := parsePage(body)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}

	if b := contentBlock(page.text); b != BlockNone {
		return nil, &BlockedError{Backend: l.Name(), Block: b}
	}
	if utf8.RuneCountInString(page.text) < minTextRunes {
		if page.scriptOnly {
			return nil, &BlockedError{Backend: l.Name(), Block: BlockJSShell}
		}
		return nil, eris.New("local_http: empty page")
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Result{
		URL:        finalURL,
		Title:      page.title,
		Content:    page.text,
		Source:     l.Name(),
		StatusCode: resp.StatusCode,
	}, nil
}

// dropped elements never contribute text. Footers stay: that is where
// most small companies put their email and phone.
var dropped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

// lineBreaks end a line of text.
var lineBreaks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Address: true,
}

var (
	blanksRe = regexp.MustCompile(`[ \t\r\f\v]+`)
	gapRe    = regexp.MustCompile(`\n{3,}`)
)

type page struct {
	title string
	text  string
	// scriptOnly is set when the page ships a noscript fallback or a meta
	// refresh, the mark of a client-rendered shell.
	scriptOnly bool
}

// parsePage extracts the title and visible text. mailto: and tel: links
// are appended to the text so contact details hidden behind icons survive.
func parsePage(body []byte) (page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return page{}, err
	}

	var (
		p        page
		b        strings.Builder
		contacts []string
		seen     = map[string]bool{}
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Title:
				if p.title == "" && n.FirstChild != nil {
					p.title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case atom.Noscript:
				p.scriptOnly = true
			case atom.Meta:
				if strings.EqualFold(attr(n, "http-equiv"), "refresh") {
					p.scriptOnly = true
				}
			case atom.A:
				if c := contactHref(attr(n, "href")); c != "" && !seen[c] {
					seen[c] = true
					contacts = append(contacts, c)
				}
			}
			if dropped[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && lineBreaks[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	lines := strings.Split(blanksRe.ReplaceAllString(b.String(), " "), "\n")
	kept := lines[:0]
	for _, line := range lines {
		kept = append(kept, strings.TrimSpace(line))
	}
	text := strings.TrimSpace(gapRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n"))
	if len(contacts) > 0 && text != "" {
		text += "\n\n" + strings.Join(contacts, "\n")
	}
	p.text = text
	return p, nil
}

// contactHref turns a mailto: or tel: link into a plain contact line.
func contactHref(href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
		if addr = strings.TrimSpace(addr); addr != "" {
			return "email: " + addr
		}
	case strings.HasPrefix(lower, "tel:"):
		if num := strings.TrimSpace(href[len("tel:"):]); num != "" {
			return "tel: " + num
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
