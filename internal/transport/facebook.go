package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quakepost/internal/registry"
	logx "quakepost/pkg/logx"
)

const defaultGraphBase = "https://graph.facebook.com/v19.0"

// Facebook publishes bulletins to a page via the Graph API. With a map
// image it posts a photo with the bulletin as its caption; without one
// it falls back to a plain feed post.
type Facebook struct {
	base string
	http *http.Client
	log  logx.Logger
}

func NewFacebook(timeout time.Duration, log logx.Logger) *Facebook {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Facebook{
		base: defaultGraphBase,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (f *Facebook) Post(ctx context.Context, dest registry.Destination, text, mediaRef string) (string, error) {
	if strings.TrimSpace(mediaRef) == "" {
		return f.postFeed(ctx, dest, text)
	}
	return f.postPhoto(ctx, dest, text, mediaRef)
}

func (f *Facebook) postFeed(ctx context.Context, dest registry.Destination, text string) (string, error) {
	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", dest.Token)

	endpoint := fmt.Sprintf("%s/%s/feed", f.base, dest.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *Facebook) postPhoto(ctx context.Context, dest registry.Destination, text, mediaRef string) (string, error) {
	img, err := os.Open(mediaRef)
	if err != nil {
		return "", fmt.Errorf("open media %s: %w", mediaRef, err)
	}
	defer img.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("message", text); err != nil {
		return "", err
	}
	if err := mw.WriteField("access_token", dest.Token); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("source", filepath.Base(mediaRef))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, img); err != nil {
		return "", fmt.Errorf("read media %s: %w", mediaRef, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/photos", f.base, dest.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

func (f *Facebook) do(req *http.Request) (string, error) {
	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph api call: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("graph api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("graph api status %d: %s", resp.StatusCode, truncate(string(b), 300))
	}

	// Photo posts answer {"id": ..., "post_id": ...}; feed posts only
	// {"id": ...}. Prefer post_id, the page-visible reference.
	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("graph api response: %w", err)
	}
	ref := out.PostID
	if ref == "" {
		ref = out.ID
	}
	if ref == "" {
		return "", fmt.Errorf("graph api response carries no post id")
	}
	return ref, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
