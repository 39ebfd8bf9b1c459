package server

import (
	"bytes"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	DefaultLogger = NewLogger(io.Discard, LogLevelDebug, false)
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// pngSample is the 10-byte PNG-signature-prefixed upload used across tests.
var pngSample = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x01}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{
		Addr:        ":0",
		DataDir:     t.TempDir(),
		SlotName:    "test.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

// multipartBody builds a form with one file part plus optional text fields.
func multipartBody(t *testing.T, field, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func serve(h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func upload(t *testing.T, h http.Handler, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "upload", "test.png", content, nil)
	return serve(h, http.MethodPost, "/upload", body, ct)
}

// stagingFiles lists leftover staging files in dir.
func stagingFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stagingPrefix) {
			out = append(out, e.Name())
		}
	}
	return out
}

// multipartWriter writes file parts named by pairs of (field, content) and
// returns the form content type.
func multipartWriter(t *testing.T, body *bytes.Buffer, parts [][2]string) string {
	t.Helper()
	writer := multipart.NewWriter(body)
	for i, p := range parts {
		fw, err := writer.CreateFormFile(p[0], "file"+string(rune('0'+i)))
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := io.WriteString(fw, p[1]); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return writer.FormDataContentType()
}
