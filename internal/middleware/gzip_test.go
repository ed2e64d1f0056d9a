package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name             string
		requestBody      string
		compressRequest  bool
		acceptEncoding   string
		wantEncoding     string
		wantBodyContains string
	}{
		{
			name:             "client accepts gzip",
			requestBody:      `{"title":"1984"}`,
			acceptEncoding:   "gzip",
			wantEncoding:     "gzip",
			wantBodyContains: `received: {"title":"1984"}`,
		},
		{
			name:             "client does not accept gzip",
			requestBody:      "plain request",
			acceptEncoding:   "",
			wantEncoding:     "",
			wantBodyContains: "received: plain request",
		},
		{
			name:             "compressed request body",
			requestBody:      "compressed request",
			compressRequest:  true,
			acceptEncoding:   "gzip",
			wantEncoding:     "gzip",
			wantBodyContains: "received: compressed request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.requestBody)
			if tt.compressRequest {
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				if _, err := zw.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("write gzip: %v", err)
				}
				if err := zw.Close(); err != nil {
					t.Fatalf("close gzip: %v", err)
				}
				requestBody = &buf
			}

			req := httptest.NewRequest(http.MethodPost, "/test", requestBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			if tt.compressRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()

			h := GzipMiddleware(http.HandlerFunc(echoHandler))
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusOK)
			}

			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}

			var body []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				zr, zerr := gzip.NewReader(res.Body)
				if zerr != nil {
					t.Fatalf("new gzip reader: %v", zerr)
				}
				defer zr.Close()
				body, err = io.ReadAll(zr)
			} else {
				body, err = io.ReadAll(res.Body)
			}
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			if !strings.Contains(string(body), tt.wantBodyContains) {
				t.Fatalf("body %q does not contain %q", string(body), tt.wantBodyContains)
			}
		})
	}
}
