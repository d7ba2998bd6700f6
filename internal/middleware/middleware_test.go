package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// serveChain runs one request through the same middleware stack main builds
// and returns the parsed access-log line plus the recorded response.
func serveChain(t *testing.T, req *http.Request) (map[string]interface{}, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	log := zerolog.New(&buf)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h = RequestID(h)
	h = Logger(&log)(h)
	h = Recovery(&log)(h)
	h = CORS([]string{"*"})(h)
	h = Timeout(time.Second)(h)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("parse access log line %q: %v", buf.String(), err)
	}
	return line, rr
}

func TestLoggerRecordsGeneratedRequestID(t *testing.T) {
	line, rr := serveChain(t, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))

	id, _ := line["request_id"].(string)
	if id == "" {
		t.Fatal("access log line has an empty request_id")
	}
	if got := rr.Header().Get("X-Request-ID"); got != id {
		t.Fatalf("logged request_id = %q, response header = %q", id, got)
	}
}

func TestLoggerReusesCallerRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set("X-Request-ID", "req-42")

	line, rr := serveChain(t, req)

	if id, _ := line["request_id"].(string); id != "req-42" {
		t.Fatalf("logged request_id = %q, want req-42", id)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("response X-Request-ID = %q, want req-42", got)
	}
}

func TestLoggerRecordsMethodPathStatus(t *testing.T) {
	line, _ := serveChain(t, httptest.NewRequest(http.MethodGet, "/api/v1/folders", nil))

	if got, _ := line["method"].(string); got != http.MethodGet {
		t.Errorf("method = %q, want GET", got)
	}
	if got, _ := line["path"].(string); got != "/api/v1/folders" {
		t.Errorf("path = %q, want /api/v1/folders", got)
	}
	if got, _ := line["status"].(float64); int(got) != http.StatusOK {
		t.Errorf("status = %d, want 200", int(got))
	}
}
