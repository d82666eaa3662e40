package scrape

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Block names the kind of anti-bot wall a site put in front of its content.
type Block string

const (
	BlockNone       Block = ""
	BlockCloudflare Block = "cloudflare"
	BlockCaptcha    Block = "captcha"
	BlockJSShell    Block = "js_shell"
	BlockRateLimit  Block = "rate_limit"
	BlockDenied     Block = "access_denied"
)

// BlockedError reports that a backend reached the site but got a wall
// instead of the page.
type BlockedError struct {
	Backend string
	Block   Block
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: blocked (%s)", e.Backend, e.Block)
}

// challengeMaxRunes bounds what counts as a challenge page. Longer text is
// real content that happens to mention one of the markers.
const challengeMaxRunes = 1000

var challengeMarkers = []struct {
	marker string
	block  Block
}{
	{"checking your browser", BlockCloudflare},
	{"cf-browser-verification", BlockCloudflare},
	{"just a moment", BlockCloudflare},
	{"attention required", BlockCloudflare},
	{"captcha", BlockCaptcha},
	{"no soy un robot", BlockCaptcha},
	{"verificá que sos humano", BlockCaptcha},
	{"verifica que eres humano", BlockCaptcha},
	{"enable javascript", BlockJSShell},
	{"habilitá javascript", BlockJSShell},
	{"please enable cookies", BlockJSShell},
	{"access denied", BlockDenied},
	{"acceso denegado", BlockDenied},
	{"403 forbidden", BlockDenied},
}

// responseBlock classifies a reply from its status line and headers.
func responseBlock(status int, h http.Header) Block {
	if status == http.StatusTooManyRequests {
		return BlockRateLimit
	}
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return BlockNone
	}
	if h.Get("Cf-Ray") != "" || h.Get("Cf-Cache-Status") != "" || strings.EqualFold(h.Get("Server"), "cloudflare") {
		return BlockCloudflare
	}
	return BlockNone
}

// contentBlock classifies page text, HTML-stripped or markdown.
func contentBlock(text string) Block {
	if utf8.RuneCountInString(text) > challengeMaxRunes {
		return BlockNone
	}
	lower := strings.ToLower(text)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m.marker) {
			return m.block
		}
	}
	if strings.Contains(lower, "cloudflare") {
		return BlockCloudflare
	}
	return BlockNone
}
