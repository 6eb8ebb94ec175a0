package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func gzipped(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf
}

func TestDecompressBodiesInflatesPatch(t *testing.T) {
	buf := gzipped(t, `{"status":"done"}`)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/t1", buf)
	req.Header.Set(echo.HeaderContentEncoding, "identity, gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var body string
	h := DecompressBodies(0)(func(c echo.Context) error {
		data, err := io.ReadAll(c.Request().Body)
		body = string(data)
		if c.Request().Header.Get(echo.HeaderContentEncoding) != "" {
			t.Errorf("content encoding should be removed")
		}
		return err
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if body != `{"status":"done"}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestDecompressBodiesRejectsInvalidGzip(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	c := e.NewContext(req, httptest.NewRecorder())
	err := DecompressBodies(0)(func(echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestDecompressBodiesPassesPlainBodies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader("plain"))
	c := e.NewContext(req, httptest.NewRecorder())
	var body string
	err := DecompressBodies(0)(func(c echo.Context) error {
		data, _ := io.ReadAll(c.Request().Body)
		body = string(data)
		return nil
	})(c)
	if err != nil || body != "plain" {
		t.Fatalf("unexpected result %q %v", body, err)
	}
}

func TestDecompressBodiesCapsInflatedSize(t *testing.T) {
	big := `{"title":"` + strings.Repeat("a", taskBodyMaxSize) + `"}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", gzipped(t, big))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	c := e.NewContext(req, httptest.NewRecorder())
	err := DecompressBodies(0)(func(c echo.Context) error {
		var in struct {
			Title string `json:"title"`
		}
		return decodeBody(c.Request().Body, &in)
	})(c)
	if err != errBodyTooLarge {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}
}

func TestGzipEncoded(t *testing.T) {
	tests := []struct {
		values []string
		want   bool
	}{
		{values: nil, want: false},
		{values: []string{"identity"}, want: false},
		{values: []string{"br, GZIP"}, want: true},
		{values: []string{"identity", "gzip"}, want: true},
	}
	for _, tt := range tests {
		if got := gzipEncoded(tt.values); got != tt.want {
			t.Fatalf("gzipEncoded(%q) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

func TestDecodeBody(t *testing.T) {
	var out struct {
		Status string `json:"status"`
	}
	if err := decodeBody(strings.NewReader(`{"status":"done"}`), &out); err != nil || out.Status != "done" {
		t.Fatalf("decode: %+v %v", out, err)
	}
	if err := decodeBody(strings.NewReader(`{"status":"done","extra":1}`), &out); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
	big := `{"status":"` + strings.Repeat("x", taskBodyMaxSize) + `"}`
	if err := decodeBody(strings.NewReader(big), &out); err != errBodyTooLarge {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}
}
