package server

import (
	"net/http"
	"strconv"
	"testing"
)

func TestShow_BeforeAnyUpload(t *testing.T) {
	srv := newTestServer(t)
	rr := serve(srv.Handler(), http.MethodGet, "/show", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Error("404 response has no body")
	}
}

func TestShow_Headers(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	if rr := upload(t, h, pngSample); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := serve(h, http.MethodGet, "/show", nil, "")
	if got := rr.Header().Get("Content-Length"); got != strconv.Itoa(len(pngSample)) {
		t.Errorf("Content-Length = %q, want %d", got, len(pngSample))
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestShow_ConfiguredContentType(t *testing.T) {
	srv, err := New(Config{DataDir: t.TempDir(), SlotName: "pic.jpg", ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := srv.Handler()
	if rr := upload(t, h, []byte("jpeg-ish")); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}
	rr := serve(h, http.MethodGet, "/show", nil, "")
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
}
