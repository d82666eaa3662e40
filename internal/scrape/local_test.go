package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactPage = `<html><head><title>Acme SA | Contacto</title><style>.x{color:red}</style></head>
<body>
<nav><a href="/">Inicio</a> <a href="/servicios">Servicios</a></nav>
<h1>Contacto</h1>
<p>Desarrollamos software a medida para pymes de Córdoba &amp; Rosario.</p>
<a href="mailto:ventas@acme.com.ar?subject=Consulta"><img src="mail.svg"></a>
<a href="tel:+543515550100">Llamanos</a>
<script>window.dataLayer = []</script>
<footer><address>Av. Colón 1234, Córdoba</address></footer>
</body></html>`

func htmlServer(t *testing.T, status int, header http.Header, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Language"), "es-AR")
		for k, v := range header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalScraper_ContactPage(t *testing.T) {
	srv := htmlServer(t, http.StatusOK, nil, contactPage)

	res, err := NewLocalScraper().Scrape(context.Background(), srv.URL+"/contacto")
	require.NoError(t, err)
	assert.Equal(t, "local_http", res.Source)
	assert.Equal(t, srv.URL+"/contacto", res.URL)
	assert.Equal(t, "Acme SA | Contacto", res.Title)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	assert.Contains(t, res.Content, "Córdoba & Rosario")
	assert.Contains(t, res.Content, "Av. Colón 1234")
	assert.Contains(t, res.Content, "email: ventas@acme.com.ar")
	assert.Contains(t, res.Content, "tel: +543515550100")
	assert.NotContains(t, res.Content, "Servicios")
	assert.NotContains(t, res.Content, "dataLayer")
	assert.NotContains(t, res.Content, "color:red")
}

func TestLocalScraper_Walls(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   Block
	}{
		{"cloudflare 403", http.StatusForbidden, http.Header{"Cf-Ray": {"8a1"}}, "<html><body>Sorry</body></html>", BlockCloudflare},
		{"throttled", http.StatusTooManyRequests, nil, "slow down", BlockRateLimit},
		{"captcha", http.StatusOK, nil, "<html><body><p>Por favor confirmá que no sos un bot.</p><p>No soy un robot</p></body></html>", BlockCaptcha},
		{"client shell", http.StatusOK, nil, `<html><body><div id="root"></div><noscript>You need to enable JavaScript to run this app.</noscript></body></html>`, BlockJSShell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := htmlServer(t, tt.status, tt.header, tt.body)
			_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)

			var be *BlockedError
			require.True(t, errors.As(err, &be), "got %v", err)
			assert.Equal(t, tt.want, be.Block)
			assert.Equal(t, "local_http", be.Backend)
		})
	}
}

func TestLocalScraper_Failures(t *testing.T) {
	srv := htmlServer(t, http.StatusNotFound, nil, "<html><body>No encontramos la página que buscás.</body></html>")
	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")

	srv = htmlServer(t, http.StatusOK, nil, "<html><body><p>Hola</p></body></html>")
	_, err = NewLocalScraper().Scrape(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "empty page")
}

func TestLocalScraper_Supports(t *testing.T) {
	s := NewLocalScraper()
	assert.Equal(t, "local_http", s.Name())
	assert.True(t, s.Supports("https://acme.com.ar"))
	assert.False(t, s.Supports("acme.com.ar"))
	assert.False(t, s.Supports("ftp://acme.com.ar"))
}

func TestParsePage(t *testing.T) {
	p, err := parsePage([]byte(`<title> Página de Acme </title><div>Hola     mundo</div>


<div></div><div></div><p>&lt;b&gt; &quot;citado&quot;</p><a href="MAILTO:a@b.com">x</a><a href="mailto:a@b.com">y</a>`))
	require.NoError(t, err)
	assert.Equal(t, "Página de Acme", p.title)
	assert.False(t, p.scriptOnly)
	assert.Contains(t, p.text, "Hola mundo")
	assert.Contains(t, p.text, `<b> "citado"`)
	assert.NotContains(t, p.text, "\n\n\n")
	assert.Equal(t, 1, strings.Count(p.text, "email: a@b.com"))

	p, err = parsePage([]byte(`<meta http-equiv="Refresh" content="0; url=/app">`))
	require.NoError(t, err)
	assert.True(t, p.scriptOnly)
	assert.Empty(t, p.title)
}

func TestContactHref(t *testing.T) {
	assert.Equal(t, "email: info@acme.com.ar", contactHref("mailto:info@acme.com.ar?subject=Hola"))
	assert.Equal(t, "tel: +54 351 555 0100", contactHref(" tel:+54 351 555 0100"))
	assert.Empty(t, contactHref("mailto:"))
	assert.Empty(t, contactHref("https://acme.com.ar"))
}
