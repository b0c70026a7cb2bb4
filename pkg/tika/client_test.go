package tika

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"docingest-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pdfXHTML = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>t</title></head>
<body><div class="page"><p>First page line one.</p><p>Line two.</p></div>
<div class="page"><p/></div>
<div class="page"><p>Third page.</p></div></body></html>`

func TestSplitPages(t *testing.T) {
	pages, err := SplitPages([]byte(pdfXHTML))
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "First page line one.\nLine two.", pages[0])
	assert.Equal(t, "", pages[1])
	assert.Equal(t, "Third page.", pages[2])
}

func TestSplitPagesWithoutPageDivs(t *testing.T) {
	pages, err := SplitPages([]byte(`<html><head><title>x</title></head><body><p>Hello</p><p>World</p></body></html>`))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Hello\nWorld", pages[0])
}

func TestClientExtractPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/html", r.Header.Get("Accept"))
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF-1.4", string(body))
		_, _ = w.Write([]byte(pdfXHTML))
	}))
	defer srv.Close()

	c := NewClient(config.TikaConfig{ServerURL: srv.URL + "/"})
	pages, err := c.ExtractPages(t.Context(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}

func TestClientOCRImageSendsLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "deu", r.Header.Get("X-Tika-OCRLanguage"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("recognised text"))
	}))
	defer srv.Close()

	c := NewClient(config.TikaConfig{ServerURL: srv.URL})
	text, err := c.OCRImage(t.Context(), []byte{0x89, 'P', 'N', 'G'}, "image/png", "deu")
	require.NoError(t, err)
	assert.Equal(t, "recognised text", text)
}

func TestClientReturnsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(config.TikaConfig{ServerURL: srv.URL})
	_, err := c.ExtractText(t.Context(), []byte("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
