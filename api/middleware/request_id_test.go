package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func serveRequestID(t *testing.T, inbound string) (header, seen string) {
	t.Helper()
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(requestIDHeader, inbound)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp.Header().Get(requestIDHeader), seen
}

func TestRequestIDEchoesWellFormedInbound(t *testing.T) {
	header, seen := serveRequestID(t, "lb-7f3a:42")
	if header != "lb-7f3a:42" || seen != header {
		t.Fatalf("expected inbound id echoed, got header=%q ctx=%q", header, seen)
	}
}

func TestRequestIDReplacesUntrustedInbound(t *testing.T) {
	for _, inbound := range []string{"", "has space", "new\nline", strings.Repeat("a", 129)} {
		header, seen := serveRequestID(t, inbound)
		if _, err := uuid.Parse(header); err != nil {
			t.Fatalf("inbound %q: expected generated uuid, got %q", inbound, header)
		}
		if seen != header {
			t.Fatalf("inbound %q: context id %q differs from header %q", inbound, seen, header)
		}
	}
}
