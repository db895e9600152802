package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaigntrip/convertapi/internal/config"
	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		APIURL:      config.DefaultAPIURL,
		Timeout:     5 * time.Second,
		MaxAttempts: 1,
		LogLevel:    "error",
		LogFormat:   "text",
		Port:        "0",
		Env:         "development",
		CORSOrigins: []string{"*"},
	}
}

// newTestServer creates a server without API access
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(testConfig(), append([]Option{WithLogger(logging.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// fakeConvert serves an experience listing for account 1 / project 2.
func fakeConvert(t *testing.T) *convert.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/1/projects/2/experiences" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"isError":true,"message":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":10,"key":"homepage_test","variations":[{"id":2,"key":"variant_b"}]}]}`))
	}))
	t.Cleanup(srv.Close)

	return convert.NewClient(convert.Config{
		BaseURL:       srv.URL,
		ApplicationID: "app-123",
		Secret:        "shh",
	})
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, WithVersion("1.2.3"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	resp := decodeBody(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "1.2.3", resp["version"])

	// Missing credentials are reported but do not degrade health.
	checks, ok := resp["checks"].([]any)
	require.True(t, ok)
	require.Len(t, checks, 2)
	creds := checks[1].(map[string]any)
	assert.Equal(t, "api_credentials", creds["name"])
	assert.Equal(t, false, creds["healthy"])
}

func TestHealthEndpoint_DegradedOnBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LogFormat = "xml"
	s, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decodeBody(t, w)["status"])
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	postJSON(t, s, "/v1/cookies/decode", `{"cookie":"exp:{10.{v.2}}"}`)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "convertapi_cookie_decodes_total")
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"POST:/v1/cookies/decode",
		"POST:/v1/signatures",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

func TestSignatureRouteDevelopmentOnly(t *testing.T) {
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	cfg := testConfig()
	cfg.Env = "production"
	s, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	w := postJSON(t, s, "/v1/signatures", `{"url":"https://x","applicationId":"a","secret":"b"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---------------------------------------------------------------------------
// Cookie decoding
// ---------------------------------------------------------------------------

func TestDecodeCookie_Field(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/v1/cookies/decode", `{"cookie":"vi:1*exp:{10.{g.{}-v.2}}*pv:3"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.JSONEq(t, `{
		"mode": "field",
		"key": "exp",
		"resolved": false,
		"data": {"exp": {"10": {"g": {}, "v": 2}}}
	}`, w.Body.String())
}

func TestDecodeCookie_OtherField(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/v1/cookies/decode", `{"cookie":"vi:1*pv:3","key":"pv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mode":"field","key":"pv","resolved":false,"data":{"pv":3}}`, w.Body.String())
}

func TestDecodeCookie_Full(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/v1/cookies/decode", `{"cookie":"vi:1*exp:{10.{v.2}}","full":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mode":"full","resolved":false,"data":{"vi":1,"exp":{"10":{"v":2}}}}`, w.Body.String())
}

func TestDecodeCookie_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		body  string
		code  int
		error string
	}{
		{"not json", `cookie`, http.StatusBadRequest, "invalid_request"},
		{"empty cookie", `{"cookie":"  "}`, http.StatusBadRequest, "validation_failed"},
		{"bad key", `{"cookie":"exp:{}","key":"Exp"}`, http.StatusBadRequest, "validation_failed"},
		{"bad account", `{"cookie":"exp:{}","accountId":"x1"}`, http.StatusBadRequest, "validation_failed"},
		{"too long", `{"cookie":"` + strings.Repeat("a", 9000) + `"}`, http.StatusBadRequest, "validation_failed"},
		{"field missing", `{"cookie":"vi:1*pv:3"}`, http.StatusNotFound, "field_not_found"},
		{"malformed", `{"cookie":"exp:{10.{v.2}"}`, http.StatusUnprocessableEntity, "malformed_cookie"},
		{"resolve without client", `{"cookie":"exp:{10.{v.2}}","resolve":true}`, http.StatusBadRequest, "resolve_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, s, "/v1/cookies/decode", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Equal(t, tt.error, decodeBody(t, w)["error"])
		})
	}
}

func TestDecodeCookie_ResolveField(t *testing.T) {
	s := newTestServer(t, WithClient(fakeConvert(t)))

	w := postJSON(t, s, "/v1/cookies/decode",
		`{"cookie":"vi:1*exp:{10.{g.5-v.2}-99.{g.{}-v.1}}","resolve":true,"accountId":"1","projectId":"2"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.JSONEq(t, `{
		"mode": "field",
		"key": "exp",
		"resolved": true,
		"data": {"homepage_test": {"g": 5, "v": "variant_b"}}
	}`, w.Body.String())
}

func TestDecodeCookie_ResolveFullUsesConfiguredProject(t *testing.T) {
	cfg := testConfig()
	cfg.AccountID = "1"
	cfg.ProjectID = "2"
	s, err := New(cfg, WithLogger(logging.Discard()), WithClient(fakeConvert(t)))
	require.NoError(t, err)

	w := postJSON(t, s, "/v1/cookies/decode", `{"cookie":"vi:1*exp:{10.{g.{}-v.1}}","full":true,"resolve":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.JSONEq(t, `{
		"mode": "full",
		"resolved": true,
		"data": {"vi": 1, "exp": {"homepage_test (10)": {"g": {}, "v": "*Excluded*"}}}
	}`, w.Body.String())
}

func TestDecodeCookie_ResolveUpstreamFailure(t *testing.T) {
	s := newTestServer(t, WithClient(fakeConvert(t)))

	w := postJSON(t, s, "/v1/cookies/decode", `{"cookie":"exp:{10.{v.2}}","resolve":true,"accountId":"7","projectId":"8"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "not found")
}

func TestDecodeCookie_BreakerStopsFailingUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"isError":true,"message":"maintenance"}`))
	}))
	t.Cleanup(srv.Close)

	client := convert.NewClient(convert.Config{BaseURL: srv.URL, ApplicationID: "app-123", Secret: "shh"})
	s := newTestServer(t, WithClient(client))
	body := `{"cookie":"exp:{10.{v.2}}","resolve":true,"accountId":"1","projectId":"2"}`

	for i := 0; i < breakerThreshold; i++ {
		w := postJSON(t, s, "/v1/cookies/decode", body)
		require.Equal(t, http.StatusBadGateway, w.Code)
	}

	w := postJSON(t, s, "/v1/cookies/decode", body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "upstream_unavailable", decodeBody(t, w)["error"])
	assert.Equal(t, int32(breakerThreshold), hits.Load())

	// Other projects are not affected.
	w = postJSON(t, s, "/v1/cookies/decode", `{"cookie":"exp:{10.{v.2}}","resolve":true,"accountId":"1","projectId":"3"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestDecodeCookie_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPM = 60
	cfg.RateLimitBurst = 2
	s, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	body := `{"cookie":"exp:{10.{v.2}}"}`
	assert.Equal(t, http.StatusOK, postJSON(t, s, "/v1/cookies/decode", body).Code)
	assert.Equal(t, http.StatusOK, postJSON(t, s, "/v1/cookies/decode", body).Code)

	w := postJSON(t, s, "/v1/cookies/decode", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health checks are never limited.
	hw := httptest.NewRecorder()
	s.router.ServeHTTP(hw, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, hw.Code)
}

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

func TestSignatureEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/v1/signatures", `{
		"applicationId": "app-123",
		"secret": "shh",
		"expires": 1700000030,
		"url": "https://api.convert.com/api/v2/accounts/1/projects/2/experiences"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SignatureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a71043b307a88f0581c9b5d7edbacecd7bf01c9ca7dacf8080a5915a7588baad", resp.Signature)
	assert.Equal(t, "app-123\n1700000030\nhttps://api.convert.com/api/v2/accounts/1/projects/2/experiences\n", resp.Message)
	assert.Equal(t, "Convert-HMAC-SHA256 Signature="+resp.Signature, resp.Headers["Authorization"])
}

func TestSignatureEndpoint_NeedsCredentials(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/v1/signatures", `{"url":"https://api.convert.com/api/v2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
