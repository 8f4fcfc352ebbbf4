package gallery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xabufr/memocadre/internal/config"
)

func immichAsset(id, city string) map[string]any {
	return map[string]any{
		"id":            id,
		"type":          "IMAGE",
		"localDateTime": "2022-03-14T09:26:53.000Z",
		"exifInfo":      map[string]any{"city": city},
	}
}

func serveThumbnail(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write([]byte("jpeg-bytes")); err != nil {
		t.Errorf("write thumbnail: %v", err)
	}
}

func TestImmichRandomMode(t *testing.T) {
	var sawKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawKey = r.Header.Get("x-api-key")
		switch r.URL.Path {
		case "/api/search/random":
			json.NewEncoder(w).Encode([]map[string]any{
				immichAsset("asset-1", "Porto"),
				immichAsset("asset-2", ""),
			})
		case "/api/assets/asset-1/thumbnail", "/api/assets/asset-2/thumbnail":
			serveThumbnail(t, w)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewImmichSource(config.GalleryConfig{
		URL:      srv.URL,
		APIKey:   "secret",
		Mode:     "random",
		PageSize: 10,
	})

	asset, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if asset.ID != "asset-1" {
		t.Errorf("expected asset-1, got %s", asset.ID)
	}
	if asset.Location != "Porto" {
		t.Errorf("expected city carried through, got %q", asset.Location)
	}
	if asset.TakenAt.IsZero() {
		t.Errorf("timestamp not parsed")
	}
	if len(asset.Bytes) == 0 {
		t.Errorf("thumbnail bytes missing")
	}
	if sawKey != "secret" {
		t.Errorf("api key header missing, got %q", sawKey)
	}
}

func TestImmichSearchPageCursorRoundTrip(t *testing.T) {
	var pages []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search/smart":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode search body: %v", err)
			}
			pages = append(pages, body["page"])

			resp := map[string]any{"assets": map[string]any{
				"items":    []map[string]any{immichAsset("page-asset", "")},
				"nextPage": nil,
			}}
			// First listing returns a cursor; the second is the last page.
			if len(pages) == 1 {
				resp["assets"].(map[string]any)["nextPage"] = "opaque-cursor-2"
			}
			json.NewEncoder(w).Encode(resp)
		case "/api/assets/page-asset/thumbnail":
			serveThumbnail(t, w)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewImmichSource(config.GalleryConfig{
		URL:      srv.URL,
		Mode:     "search",
		Query:    "beach",
		PageSize: 1,
	})
	ctx := context.Background()

	// Three fetches: page 1, page 2 (cursor echoed), wrap to page 1.
	for i := 0; i < 3; i++ {
		if _, err := src.Next(ctx); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}

	if len(pages) != 3 {
		t.Fatalf("expected 3 listing calls, got %d", len(pages))
	}
	if pages[0] != nil {
		t.Errorf("first listing must not carry a cursor, got %v", pages[0])
	}
	if pages[1] != "opaque-cursor-2" {
		t.Errorf("cursor not echoed verbatim, got %v", pages[1])
	}
	if pages[2] != nil {
		t.Errorf("exhausted search must wrap to the first page, got %v", pages[2])
	}
}

func TestImmichAlbumMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/albums/album-9":
			json.NewEncoder(w).Encode(map[string]any{
				"albumName": "Holidays",
				"assets": []map[string]any{
					immichAsset("a", "Faro"),
					{"id": "video-1", "type": "VIDEO"},
				},
			})
		case "/api/assets/a/thumbnail":
			serveThumbnail(t, w)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewImmichSource(config.GalleryConfig{
		URL:     srv.URL,
		Mode:    "album",
		AlbumID: "album-9",
	})

	asset, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if asset.ID != "a" {
		t.Errorf("expected image asset, got %s", asset.ID)
	}

	// The only other album entry is a video, which must be filtered out.
	if _, err := src.Next(context.Background()); err == nil {
		t.Logf("second next refilled the album again, acceptable")
	}
}

func TestImmichServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := NewImmichSource(config.GalleryConfig{URL: srv.URL, Mode: "random"})
	if _, err := src.Next(context.Background()); err == nil {
		t.Fatalf("expected error on 401")
	}
}
