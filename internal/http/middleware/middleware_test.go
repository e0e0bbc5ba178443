package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ----- RequestID -----

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if rid := w.Header().Get(requestIDHeader); rid == "" {
		t.Fatalf("no %s header emitted", requestIDHeader)
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "given-id")
	w := serve(r, req)
	if rid := w.Header().Get(requestIDHeader); rid != "given-id" {
		t.Fatalf("rid = %q; want propagated", rid)
	}
}

// ----- Recovery -----

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

// ----- Rate limiting -----

func TestRateLimiter_EnforcesBurst(t *testing.T) {
	r := gin.New()
	rl := NewRateLimiter(0, 2, KeyByClientIP())
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestRateLimiter_ReplayBypasses(t *testing.T) {
	r := gin.New()
	rl := NewRateLimiter(0, 1, KeyByClientIP())
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true) })
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		if w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusOK {
			t.Fatalf("bypassed request %d: status = %d", i, w.Code)
		}
	}
}

// ----- Security headers -----

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnablePolicy: true, NoStore: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	checks := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for h, want := range checks {
		if got := w.Header().Get(h); got != want {
			t.Errorf("%s = %q; want %q", h, got, want)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Errorf("HSTS emitted on plain HTTP")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := serve(r, req)
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=3600") {
		t.Fatalf("HSTS = %q", got)
	}
}

// ----- Idempotency -----

func idemRouter(lookup IdempotencyLookup) *gin.Engine {
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/chatrooms/:id/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"key":    func() string { k, _ := GetIdempotencyKey(c); return k }(),
			"replay": IsReplay(c),
		})
	})
	return r
}

func TestIdempotencyValidator_NoHeaderNoOp(t *testing.T) {
	r := idemRouter(nil)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/chatrooms/r1/messages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"replay":false`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestIdempotencyValidator_RejectsMalformedKey(t *testing.T) {
	r := idemRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/chatrooms/r1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "bad key with spaces")
	w := serve(r, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_RejectsOverlongKey(t *testing.T) {
	r := idemRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/chatrooms/r1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, strings.Repeat("a", 201))
	w := serve(r, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_MarksReplay(t *testing.T) {
	var gotRoom, gotKey string
	lookup := func(ctx context.Context, roomID, key string, now time.Time) (bool, error) {
		gotRoom, gotKey = roomID, key
		return true, nil
	}
	r := idemRouter(lookup)

	req := httptest.NewRequest(http.MethodPost, "/chatrooms/r1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-1")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotRoom != "r1" || gotKey != "retry-1" {
		t.Fatalf("lookup args = %q %q", gotRoom, gotKey)
	}
	if !strings.Contains(w.Body.String(), `"replay":true`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestIdempotencyValidator_FreshKeyNotReplay(t *testing.T) {
	lookup := func(ctx context.Context, roomID, key string, now time.Time) (bool, error) {
		return false, nil
	}
	r := idemRouter(lookup)

	req := httptest.NewRequest(http.MethodPost, "/chatrooms/r1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "fresh-1")
	w := serve(r, req)
	if !strings.Contains(w.Body.String(), `"replay":false`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"key":"fresh-1"`) {
		t.Fatalf("key not stashed: %s", w.Body.String())
	}
}

// ----- Logging -----

func TestLoggerFrom_FallbackWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if lg := LoggerFrom(c); lg == nil {
		t.Fatalf("nil logger")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abcdef", 0); got != "abcdef" {
		t.Fatalf("truncate = %q", got)
	}
}
