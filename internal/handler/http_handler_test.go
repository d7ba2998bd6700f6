package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// Every folder mutation resolves the acting user from the forwarded identity
// headers before touching the service layer, the same as folder creation.
func TestFolderMutationsRequireIdentityHeaders(t *testing.T) {
	h := NewHTTPHandler(nil, nil, nil, nil, zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/folders"},
		{http.MethodPatch, "/api/v1/folders/f-1"},
		{http.MethodDelete, "/api/v1/folders/f-1"},
		{http.MethodPut, "/api/v1/folders/f-1/summary-file"},
		{http.MethodPost, "/api/v1/folders/f-1/invoices/inv-1"},
		{http.MethodDelete, "/api/v1/folders/f-1/invoices/inv-1"},
	}
	for _, req := range requests {
		t.Run(req.method+" "+req.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(req.method, req.path, strings.NewReader("{}")))
			if rr.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rr.Code)
			}
		})
	}
}
