package imagery

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/valpere/tile_imagery/internal"
	"github.com/valpere/tile_imagery/internal/config"
)

func testNetworkConfig() config.NetworkConfig {
	return config.NetworkConfig{
		Timeout:         5 * time.Second,
		MaxRetries:      0,
		UserAgent:       "TileImageryTest/1.0",
		MaxIdleConns:    4,
		IdleConnTimeout: time.Second,
	}
}

func newTestFetcher(t *testing.T, server *httptest.Server) *HTTPFetcher {
	t.Helper()
	f := NewHTTPFetcher(testNetworkConfig(), nil, nil)
	if server != nil {
		f.client = server.Client()
	}
	f.backoff = time.Millisecond
	return f
}

func TestReplaceHTTPWithHTTPS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://x", "https://x"},
		{"https://x", "https://x"},
		{"HTTP://ecn.t0.tiles.virtualearth.net/tiles/a{quadkey}.jpeg", "https://ecn.t0.tiles.virtualearth.net/tiles/a{quadkey}.jpeg"},
		{"ftp://x", "ftp://x"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ReplaceHTTPWithHTTPS(tt.in); got != tt.want {
			t.Errorf("ReplaceHTTPWithHTTPS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        ImageFormat
		wantErr     bool
	}{
		{"image/jpeg", FormatJPEG, false},
		{"image/png", FormatPNG, false},
		{"Image/PNG; charset=binary", FormatPNG, false},
		{"text/html", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := FormatFromContentType(tt.contentType)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatFromContentType(%q) error = %v, wantErr %v", tt.contentType, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
			}
			if !internal.HasCode(err, internal.ErrorCodeUnsupportedFormat) {
				t.Errorf("Expected UNSUPPORTED_FORMAT code, got %v", err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("FormatFromContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

func TestSampledEqual(t *testing.T) {
	a := bytes.Repeat([]byte{1}, 35)
	b := bytes.Repeat([]byte{1}, 35)

	if !sampledEqual(a, b) {
		t.Error("Expected identical buffers to match")
	}

	// offset 5 is never sampled
	b[5] = 9
	if !sampledEqual(a, b) {
		t.Error("Expected difference at an unsampled offset to be ignored")
	}

	b[20] = 9
	if sampledEqual(a, b) {
		t.Error("Expected difference at a sampled offset to be detected")
	}

	if sampledEqual(a, a[:34]) {
		t.Error("Expected different lengths not to match")
	}
}

func TestLoadTile(t *testing.T) {
	missing := bytes.Repeat([]byte{0xAB}, 64)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jpeg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xFF, 0xD8, 0xFF})
		case "/png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		case "/empty":
			w.Header().Set("Content-Type", "image/png")
		case "/missing":
			w.Header().Set("Content-Type", "image/png")
			w.Write(missing)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	b := newBase(internal.ProviderWms, MapTypeAerial, newTestFetcher(t, nil), nil)
	b.setMissingTile(missing)
	ctx := context.Background()

	tests := []struct {
		path       string
		wantFormat ImageFormat
		wantNil    bool
		wantErr    bool
	}{
		{"/jpeg", FormatJPEG, false, false},
		{"/png", FormatPNG, false, false},
		{"/html", 0, true, true},
		{"/empty", 0, true, false},
		{"/missing", 0, true, false},
		{"/notfound", 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src, err := b.loadTile(ctx, server.URL+tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadTile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantNil {
				if src != nil {
					t.Errorf("Expected no image, got %+v", src)
				}
				return
			}
			if src == nil {
				t.Fatal("Expected an image source")
			}
			if src.Format != tt.wantFormat {
				t.Errorf("Expected format %v, got %v", tt.wantFormat, src.Format)
			}
		})
	}
}

func TestLoadTileTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/tile.png"
	server.Close()

	b := newBase(internal.ProviderWms, MapTypeAerial, newTestFetcher(t, nil), nil)
	src, err := b.loadTile(context.Background(), url)
	if err != nil {
		t.Errorf("Expected transport failure to be swallowed, got %v", err)
	}
	if src != nil {
		t.Errorf("Expected no image, got %+v", src)
	}
}
