package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	loadapp "github.com/loadengine/backend/internal/application/load"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/telemetry"
	"github.com/loadengine/backend/internal/interfaces/http/handler"
	"github.com/loadengine/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("/test")
	group.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	NewRouter(engine).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("middleware applies to group routes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("/test")
		g.Use(func(c *gin.Context) {
			c.Header("X-Test-Middleware", "applied")
			c.Next()
		})
		g.POST("/items", func(c *gin.Context) { c.Status(http.StatusCreated) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/test/items", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
	})

	t.Run("subgroups nest under the parent prefix", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("/load")
		g.Group("/admin").GET("/orphans", func(c *gin.Context) { c.String(http.StatusOK, "orphans") })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/load/admin/orphans", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "orphans", w.Body.String())
	})

	t.Run("empty prefix scopes middleware only", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("/load")
		g.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.Group("").Use(func(c *gin.Context) {
			c.Header("X-Guarded", "yes")
			c.Next()
		}).POST("/guarded", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/load/guarded", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "yes", w.Header().Get("X-Guarded"))

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/load/open", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Guarded"))
	})
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(context.Context, load.LoadRequest, string) (*loadapp.DispatchResult, error) {
	return &loadapp.DispatchResult{Provider: load.ProviderDTOne, Status: load.Known(load.StatusWait), ReferenceCode: "D3RJ0"}, nil
}

func (stubDispatcher) FindByReference(context.Context, string) (*load.LedgerEntry, error) {
	return nil, load.ErrLedgerEntryNotFound
}

type stubQueries struct{}

func (stubQueries) Process(context.Context, string, string, load.BotSource) (*loadapp.DispatchResult, error) {
	return &loadapp.DispatchResult{Provider: load.ProviderDTOne, Status: load.Known(load.StatusWait)}, nil
}

type stubOrphans struct{}

func (stubOrphans) List(context.Context, int) ([]load.OrphanRecord, error) {
	return nil, nil
}

type stubAcceptor struct {
	accepted  int
	malformed int
}

func (s *stubAcceptor) Accept(context.Context, load.CallbackPayload) {
	s.accepted++
}

func (s *stubAcceptor) AcceptMalformed(context.Context, load.CallbackKind, []byte, error) {
	s.malformed++
}

func newTestEngine(t *testing.T, limiter *middleware.RateLimiter) (*gin.Engine, *stubAcceptor) {
	t.Helper()
	acceptor := &stubAcceptor{}
	loads := handler.NewLoadHandler(stubDispatcher{}, stubQueries{}, stubOrphans{})
	callbacks := handler.NewCallbackHandler(acceptor, "generic-key", "intlprov")

	var limit gin.HandlerFunc
	if limiter != nil {
		limit = middleware.RateLimitByUser(limiter)
	}

	engine, err := NewEngine(EngineConfig{
		Metrics:        telemetry.NewLoadMetrics("load_test"),
		Tracing:        middleware.TracingConfig{ServiceName: "load-engine"},
		MaxBodySize:    1 << 10,
		RequestTimeout: 5 * time.Second,
		System:         handler.NewSystemHandler("load-engine", "test", nil),
		Registrars:     []RouteRegistrar{LoadRoutes(loads, callbacks, limit)},
	})
	require.NoError(t, err)
	return engine, acceptor
}

func serve(engine *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(handler.UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewEngine_SystemEndpoints(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	w := serve(engine, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	serve(engine, http.MethodPost, "/api/v1/load/reload", "user-1", `{"mobile":"0917","sku":"p1"}`)
	w = serve(engine, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `load_test_http_requests_total{method="POST",route="/api/v1/load/reload",status="200"} 1`)
}

func TestNewEngine_LoadRoutes(t *testing.T) {
	engine, acceptor := newTestEngine(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		body       string
		wantStatus int
	}{
		{name: "reload", method: http.MethodPost, path: "/api/v1/load/reload", user: "u", body: `{"mobile":"0917","sku":"p1"}`, wantStatus: http.StatusOK},
		{name: "query", method: http.MethodPost, path: "/api/v1/load/query", user: "u", body: `{"query":"p1 0917"}`, wantStatus: http.StatusOK},
		{name: "reference not found", method: http.MethodGet, path: "/api/v1/load/references/ZZZZZ", wantStatus: http.StatusNotFound},
		{name: "orphans", method: http.MethodGet, path: "/api/v1/load/orphans", wantStatus: http.StatusOK},
		{name: "callback", method: http.MethodPost, path: "/api/v1/load/callback/intlprov", body: `{"id":5,"status":{"id":70000,"message":"COMPLETED"}}`, wantStatus: http.StatusOK},
		{name: "callback malformed", method: http.MethodPost, path: "/api/v1/load/callback/generic-key", body: `nope`, wantStatus: http.StatusBadRequest},
		{name: "callback bad key", method: http.MethodPost, path: "/api/v1/load/callback/nope", body: `{}`, wantStatus: http.StatusUnauthorized},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nothing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 1, acceptor.accepted)
	assert.Equal(t, 1, acceptor.malformed)
}

func TestNewEngine_BodyLimit(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	body := `{"query":"` + strings.Repeat("x", 2048) + `"}`
	w := serve(engine, http.MethodPost, "/api/v1/load/query", "u", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewEngine_RateLimitsDispatchingRoutes(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Hour)
	defer limiter.Stop()
	engine, _ := newTestEngine(t, limiter)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/v1/load/query", "u", `{"query":"p1 0917"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/v1/load/query", "u", `{"query":"p1 0917"}`).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/load/orphans", "u", "").Code)
}
