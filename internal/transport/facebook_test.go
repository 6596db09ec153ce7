package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quakepost/internal/registry"
	logx "quakepost/pkg/logx"
)

func testFacebook(t *testing.T, handler http.HandlerFunc) *Facebook {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewFacebook(5*time.Second, logx.Nop())
	f.base = srv.URL
	return f
}

func pageDest() registry.Destination {
	return registry.Destination{Name: "page-main", Kind: registry.KindFacebook, Token: "tok", PageID: "112233"}
}

func TestFacebookFeedPost(t *testing.T) {
	t.Parallel()
	f := testFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/112233/feed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("access_token") != "tok" || r.PostForm.Get("message") == "" {
			t.Errorf("form = %v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "112233_777"})
	})

	ref, err := f.Post(context.Background(), pageDest(), "#SISMO ...", "")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if ref != "112233_777" {
		t.Fatalf("ref = %q", ref)
	}
}

func TestFacebookPhotoPost(t *testing.T) {
	t.Parallel()
	img := filepath.Join(t.TempDir(), "map.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := testFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/112233/photos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("source"); err != nil {
			t.Errorf("source file: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "999", "post_id": "112233_999"})
	})

	ref, err := f.Post(context.Background(), pageDest(), "#SISMO ...", img)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	// post_id is the page-visible reference and wins over id.
	if ref != "112233_999" {
		t.Fatalf("ref = %q", ref)
	}
}

func TestFacebookErrorStatus(t *testing.T) {
	t.Parallel()
	f := testFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid OAuth access token"}}`))
	})

	if _, err := f.Post(context.Background(), pageDest(), "text", ""); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestMuxRouting(t *testing.T) {
	t.Parallel()
	f := testFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "1"})
	})
	mux := NewMux().Handle(registry.KindFacebook, f)

	if _, err := mux.Post(context.Background(), pageDest(), "t", ""); err != nil {
		t.Fatalf("mux facebook post: %v", err)
	}
	_, err := mux.Post(context.Background(), registry.Destination{Kind: registry.KindTelegram}, "t", "")
	if err == nil {
		t.Fatal("expected ErrNoTransport for unregistered kind")
	}
}
