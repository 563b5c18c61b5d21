package middleware

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forgo/occasions/api/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stack builds the middleware chain in the order the server uses
func stack(h http.Handler, logger *slog.Logger, origins ...string) http.Handler {
	return Chain(h, RequestID, Logger(logger), Recovery, CORS(origins), Compress)
}

// logLines decodes every JSON record written to buf
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		lines = append(lines, rec)
	}
	return lines
}

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// hijackRecorder is a recorder that can be taken over like a real connection
type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	server, client := net.Pipe()
	_ = client.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

func TestChain_RunsOutermostFirst(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
	}{
		{"client supplied", "occasions-req-1"},
		{"generated", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/occasions", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
			if tt.header != "" {
				assert.Equal(t, tt.header, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "generated id should be a uuid")
		})
	}
}

func TestGetRequestID_AbsentOrForeignValue(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetRequestID(context.WithValue(context.Background(), RequestIDKey, 42)))
}

func TestRecovery_WritesProblemDetails(t *testing.T) {
	t.Parallel()

	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil occasion")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/occasions/abc", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var problem model.ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusInternalServerError, problem.Status)
	assert.Equal(t, "Internal Server Error", problem.Title)
	assert.True(t, strings.HasSuffix(problem.Type, "/errors/internal"), problem.Type)
	assert.Equal(t, "/v1/occasions/abc", problem.Instance)
	assert.Equal(t, model.ErrCodeInternal, problem.Code)
	assert.NotContains(t, rr.Body.String(), "nil occasion", "panic value must not leak")
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/events/stream", nil))
	})
}

func TestCORS_Origins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"listed origin", []string{"https://occasions.example"}, "https://occasions.example", "https://occasions.example"},
		{"unlisted origin", []string{"https://occasions.example"}, "https://evil.example", ""},
		{"wildcard echoes origin", []string{"*"}, "https://any.example", "https://any.example"},
		{"no origin header", []string{"*"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/v1/occasions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.want != "" {
				assert.Equal(t, "Origin", rr.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_AdvertisesOnlyUsedHeaders(t *testing.T) {
	t.Parallel()

	called := false
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodOptions, "/v1/occasions/abc", nil)
	req.Header.Set("Origin", "https://occasions.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, called, "preflight must not reach the handler")

	allowHeaders := rr.Header().Get("Access-Control-Allow-Headers")
	assert.Equal(t, "Content-Type, X-Request-ID", allowHeaders)
	assert.NotContains(t, allowHeaders, "Authorization")
	assert.NotContains(t, allowHeaders, "Idempotency-Key")
	assert.Equal(t, "GET, POST, PATCH, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "X-Request-ID", rr.Header().Get("Access-Control-Expose-Headers"))
}

func TestCompress(t *testing.T) {
	t.Parallel()

	body := strings.Repeat(`{"name":"Majlis","status":"pending"}`, 20)
	tests := []struct {
		name     string
		headers  map[string]string
		wantGzip bool
	}{
		{"gzip accepted", map[string]string{"Accept-Encoding": "gzip, deflate"}, true},
		{"gzip not accepted", nil, false},
		{"event stream", map[string]string{"Accept-Encoding": "gzip", "Accept": "text/event-stream"}, false},
		{"websocket upgrade", map[string]string{"Accept-Encoding": "gzip", "Upgrade": "WebSocket"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/occasions", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if !tt.wantGzip {
				assert.Empty(t, rr.Header().Get("Content-Encoding"))
				assert.Equal(t, body, rr.Body.String())
				return
			}
			assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
			gz, err := gzip.NewReader(rr.Body)
			require.NoError(t, err)
			plain, err := io.ReadAll(gz)
			require.NoError(t, err)
			assert.Equal(t, body, string(plain))
		})
	}
}

func TestLogger_WritesStructuredRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := RequestID(Logger(jsonLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "12345")
	})))
	req := httptest.NewRequest(http.MethodPost, "/v1/occasions", nil)
	req.Header.Set("X-Request-ID", "req-7")
	req.Header.Set("User-Agent", "occasions-test")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "request", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "POST", rec["method"])
	assert.Equal(t, "/v1/occasions", rec["path"])
	assert.EqualValues(t, http.StatusCreated, rec["status"])
	assert.EqualValues(t, 5, rec["bytes"])
	assert.Equal(t, "req-7", rec["request_id"])
	assert.Equal(t, "occasions-test", rec["user_agent"])
	assert.Contains(t, rec, "duration")
}

func TestStack_PanicIsLoggedAsServerError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), jsonLogger(&buf), "*")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/jobs", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.EqualValues(t, http.StatusInternalServerError, lines[0]["status"])
	assert.Equal(t, rr.Header().Get("X-Request-ID"), lines[0]["request_id"])
}

func TestLogger_KeepsFlushForEventStreams(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: heartbeat\n\n")
		require.NoError(t, http.NewResponseController(w).Flush())
	}), jsonLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/v1/events/stream", nil)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.True(t, rr.Flushed)
	assert.Equal(t, "event: heartbeat\n\n", rr.Body.String())
}

func TestLogger_KeepsHijackForWebSockets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := http.NewResponseController(w).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}), jsonLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/v1/live", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, req)

	assert.True(t, rec.hijacked)
	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.EqualValues(t, http.StatusSwitchingProtocols, lines[0]["status"])
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	_, _, err := rw.Hijack()
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, rw.statusCode)
}
