package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xabufr/memocadre/internal/config"
)

// ImmichSource walks an Immich server in one of three modes: random
// sampling, a fixed album, or a smart search query. Smart search is
// paginated; the page cursor returned by the server is stored verbatim and
// sent back on the following listing call, so multi-page searches walk
// every page before wrapping to the first.
type ImmichSource struct {
	cfg    config.GalleryConfig
	client *http.Client

	pending []assetMeta
	// page is the smart-search continuation cursor. Empty means first page.
	page string
}

type assetMeta struct {
	id       string
	location string
	takenAt  time.Time
}

// NewImmichSource creates a source for the configured Immich server.
func NewImmichSource(cfg config.GalleryConfig) *ImmichSource {
	return &ImmichSource{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Next returns the next asset, refilling the listing buffer when needed.
func (s *ImmichSource) Next(ctx context.Context) (*Asset, error) {
	if len(s.pending) == 0 {
		if err := s.refill(ctx); err != nil {
			return nil, err
		}
	}
	if len(s.pending) == 0 {
		return nil, ErrExhausted
	}

	meta := s.pending[0]
	s.pending = s.pending[1:]

	data, err := s.thumbnail(ctx, meta.id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset %s: %w", meta.id, err)
	}

	return &Asset{
		ID:       meta.id,
		Bytes:    data,
		Location: meta.location,
		TakenAt:  meta.takenAt,
	}, nil
}

func (s *ImmichSource) refill(ctx context.Context) error {
	switch s.cfg.Mode {
	case "album":
		return s.refillAlbum(ctx)
	case "search":
		return s.refillSearch(ctx)
	default:
		return s.refillRandom(ctx)
	}
}

type assetResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	LocalDateTime string `json:"localDateTime"`
	ExifInfo      *struct {
		City *string `json:"city"`
	} `json:"exifInfo"`
}

func (s *ImmichSource) refillRandom(ctx context.Context) error {
	body := map[string]any{
		"size":     s.cfg.PageSize,
		"type":     "IMAGE",
		"withExif": true,
	}
	var assets []assetResponse
	if err := s.post(ctx, "search/random", body, &assets); err != nil {
		return fmt.Errorf("random search failed: %w", err)
	}
	s.append(assets)
	return nil
}

func (s *ImmichSource) refillAlbum(ctx context.Context) error {
	var album struct {
		AlbumName string          `json:"albumName"`
		Assets    []assetResponse `json:"assets"`
	}
	if err := s.get(ctx, "albums/"+s.cfg.AlbumID, &album); err != nil {
		return fmt.Errorf("album listing failed: %w", err)
	}
	s.append(album.Assets)
	return nil
}

func (s *ImmichSource) refillSearch(ctx context.Context) error {
	body := map[string]any{
		"query":    s.cfg.Query,
		"size":     s.cfg.PageSize,
		"type":     "IMAGE",
		"withExif": true,
	}
	// The cursor must round-trip untouched: the server hands back an opaque
	// page value and expects it verbatim on the next call.
	if s.page != "" {
		body["page"] = s.page
	}

	var resp struct {
		Assets struct {
			Items    []assetResponse `json:"items"`
			NextPage *string         `json:"nextPage"`
		} `json:"assets"`
	}
	if err := s.post(ctx, "search/smart", body, &resp); err != nil {
		return fmt.Errorf("smart search failed: %w", err)
	}

	if resp.Assets.NextPage != nil && *resp.Assets.NextPage != "" {
		s.page = *resp.Assets.NextPage
	} else {
		// Last page: wrap to the beginning on the next refill.
		s.page = ""
	}
	s.append(resp.Assets.Items)
	return nil
}

func (s *ImmichSource) append(assets []assetResponse) {
	for _, a := range assets {
		if a.Type != "" && a.Type != "IMAGE" {
			continue
		}
		meta := assetMeta{id: a.ID}
		if a.ExifInfo != nil && a.ExifInfo.City != nil {
			meta.location = *a.ExifInfo.City
		}
		meta.takenAt = parseImmichTime(a.LocalDateTime)
		s.pending = append(s.pending, meta)
	}
}

func parseImmichTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	slog.Debug("unparseable asset timestamp", "value", s)
	return time.Time{}
}

// thumbnail fetches the preview-sized rendition; full originals waste
// bandwidth and decode time on displays this size.
func (s *ImmichSource) thumbnail(ctx context.Context, id string) ([]byte, error) {
	req, err := s.request(ctx, http.MethodGet, fmt.Sprintf("assets/%s/thumbnail?size=preview", id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("immich returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *ImmichSource) get(ctx context.Context, path string, out any) error {
	req, err := s.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *ImmichSource) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := s.request(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *ImmichSource) request(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s/api/%s", s.cfg.URL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", s.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (s *ImmichSource) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("immich returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode immich response: %w", err)
	}
	return nil
}
