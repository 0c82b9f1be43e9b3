package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-cmp/cmp"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/embed"
	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/ratelimit"
)

const testLoginURL = "https://reports.auth.us-east-1.amazoncognito.com/login?client_id=abc"

type fakeResolver struct {
	resolve func(ctx context.Context, idToken, dashboardName string) (*embed.Result, error)
	tokens  []string
}

func (f *fakeResolver) ResolveEmbedURL(ctx context.Context, idToken, dashboardName string) (*embed.Result, error) {
	f.tokens = append(f.tokens, idToken)
	if f.resolve != nil {
		return f.resolve(ctx, idToken, dashboardName)
	}
	return &embed.Result{URL: "https://embed.example.com/d1", RequestID: "req-1"}, nil
}

func (f *fakeResolver) LoginURL() string {
	return testLoginURL
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	keys       []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.retryAfter, f.err
}

func testDeps(resolver Resolver, limiter ratelimit.RateLimiter) *Deps {
	c := config.Defaults()
	c.Cognito.RedirectURI = "https://app.example.com"
	return &Deps{Config: c, Resolver: resolver, Limiter: limiter}
}

func request(method, path string, query map[string]string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		RawPath:               path,
		QueryStringParameters: query,
		Headers:               map[string]string{},
	}
	req.RequestContext.HTTP.Method = method
	req.RequestContext.HTTP.SourceIP = "198.51.100.4"
	return req
}

func decodeError(t *testing.T, body string) ErrorBody {
	t.Helper()
	var got ErrorBody
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("body %q is not an error object: %v", body, err)
	}
	return got
}

func TestRoute_Status(t *testing.T) {
	router := NewRouter(NewHandler(testDeps(&fakeResolver{}, ratelimit.Unlimited{})))

	for _, path := range []string{"", "/"} {
		resp, err := router.Route(context.Background(), request(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("Route(%q) error = %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Route(%q) status = %d, want 200", path, resp.StatusCode)
		}
		if resp.Body != `{"status":"ok"}` {
			t.Errorf("Route(%q) body = %s", path, resp.Body)
		}
	}
}

func TestRoute_Login(t *testing.T) {
	router := NewRouter(NewHandler(testDeps(&fakeResolver{}, ratelimit.Unlimited{})))

	resp, err := router.Route(context.Background(), request(http.MethodGet, "/v1/aws/auth/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if got := resp.Headers["Location"]; got != testLoginURL {
		t.Errorf("Location = %q, want %q", got, testLoginURL)
	}
}

func TestRoute_Embed(t *testing.T) {
	resolver := &fakeResolver{
		resolve: func(_ context.Context, _, dashboardName string) (*embed.Result, error) {
			if dashboardName != "Sales Overview" {
				t.Errorf("dashboardName = %q", dashboardName)
			}
			return &embed.Result{URL: "https://embed.example.com/d1?code=x&y=1", RequestID: "req-9"}, nil
		},
	}
	limiter := &fakeLimiter{allowed: true}
	router := NewRouter(NewHandler(testDeps(resolver, limiter)))

	resp, err := router.Route(context.Background(), request(http.MethodGet, "/v1/aws", map[string]string{
		"idToken":       " token-1 ",
		"dashboardName": "Sales Overview",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	var url string
	if err := json.Unmarshal([]byte(resp.Body), &url); err != nil {
		t.Fatalf("body %q is not a JSON string: %v", resp.Body, err)
	}
	if url != "https://embed.example.com/d1?code=x&y=1" {
		t.Errorf("url = %q", url)
	}
	if diff := cmp.Diff([]string{"token-1"}, resolver.tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"198.51.100.4"}, limiter.keys); diff != "" {
		t.Errorf("limiter keys mismatch (-want +got):\n%s", diff)
	}
	if resp.Headers["X-Request-Id"] != "req-9" {
		t.Errorf("X-Request-Id = %q", resp.Headers["X-Request-Id"])
	}
	if resp.Headers["Cache-Control"] != "no-store" {
		t.Errorf("Cache-Control = %q", resp.Headers["Cache-Control"])
	}
}

func TestRoute_EmbedErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      map[string]string
		resolveErr error
		limiter    *fakeLimiter
		wantStatus int
		wantBody   ErrorBody
		wantRetry  string
	}{
		{
			name:       "missing token",
			query:      map[string]string{"dashboardName": "Sales"},
			limiter:    &fakeLimiter{allowed: true},
			wantStatus: http.StatusUnauthorized,
			wantBody:   ErrorBody{Message: "idToken query parameter is required", Code: relayerrors.ErrCodeInvalidToken},
		},
		{
			name:       "dashboard not found",
			query:      map[string]string{"idToken": "t", "dashboardName": "Missing"},
			resolveErr: relayerrors.New(relayerrors.KindDashboardNotFound, `dashboard "Missing" not found`, nil),
			limiter:    &fakeLimiter{allowed: true},
			wantStatus: http.StatusNotFound,
			wantBody:   ErrorBody{Message: `dashboard "Missing" not found`, Code: relayerrors.ErrCodeDashboardNotFound},
		},
		{
			name:       "unclassified",
			query:      map[string]string{"idToken": "t"},
			resolveErr: errors.New("boom"),
			limiter:    &fakeLimiter{allowed: true},
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorBody{Message: "Internal Server Error", Code: relayerrors.ErrCodeInternal},
		},
		{
			name:       "rate limited",
			query:      map[string]string{"idToken": "t"},
			limiter:    &fakeLimiter{allowed: false, retryAfter: 2500 * time.Millisecond},
			wantStatus: http.StatusTooManyRequests,
			wantBody:   ErrorBody{Message: "Too Many Requests", Code: relayerrors.ErrCodeRateLimited},
			wantRetry:  "3",
		},
		{
			name:       "rate limited short wait",
			query:      map[string]string{"idToken": "t"},
			limiter:    &fakeLimiter{allowed: false},
			wantStatus: http.StatusTooManyRequests,
			wantBody:   ErrorBody{Message: "Too Many Requests", Code: relayerrors.ErrCodeRateLimited},
			wantRetry:  "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{
				resolve: func(context.Context, string, string) (*embed.Result, error) {
					return nil, tt.resolveErr
				},
			}
			router := NewRouter(NewHandler(testDeps(resolver, tt.limiter)))

			resp, err := router.Route(context.Background(), request(http.MethodGet, "/v1/aws", tt.query))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.wantBody, decodeError(t, resp.Body)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if got := resp.Headers["Retry-After"]; got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
		})
	}
}

func TestRoute_RateLimiterFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{allowed: true, err: errors.New("table unavailable")}
	router := NewRouter(NewHandler(testDeps(&fakeResolver{}, limiter)))

	resp, err := router.Route(context.Background(), request(http.MethodGet, "/v1/aws", map[string]string{"idToken": "t"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRoute_NotFoundAndMethod(t *testing.T) {
	router := NewRouter(NewHandler(testDeps(&fakeResolver{}, ratelimit.Unlimited{})))

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{http.MethodGet, "/v2/aws", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodGet, "/v1/aws/other", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/v1/aws", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		resp, err := router.Route(context.Background(), request(tt.method, tt.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.wantStatus)
		}
		if got := decodeError(t, resp.Body).Code; got != tt.wantCode {
			t.Errorf("%s %s code = %q, want %q", tt.method, tt.path, got, tt.wantCode)
		}
	}
}

func TestRoute_CORS(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"redirect origin", http.MethodGet, "https://app.example.com", "https://app.example.com", http.StatusFound},
		{"unknown origin", http.MethodGet, "https://evil.example.com", "", http.StatusFound},
		{"no origin", http.MethodGet, "", "", http.StatusFound},
		{"preflight", http.MethodOptions, "https://app.example.com", "https://app.example.com", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewHandler(testDeps(&fakeResolver{}, ratelimit.Unlimited{})))
			req := request(tt.method, "/v1/aws/auth", nil)
			if tt.origin != "" {
				req.Headers["origin"] = tt.origin
			}

			resp, err := router.Route(context.Background(), req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Headers["Access-Control-Allow-Origin"]; got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin != "" && resp.Headers["Access-Control-Allow-Credentials"] != "true" {
				t.Error("expected credentials to be allowed")
			}
		})
	}
}

func TestRoute_EmbedNotCancelledWithRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resolver := &fakeResolver{resolve: func(ctx context.Context, _, _ string) (*embed.Result, error) {
		cancel()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &embed.Result{URL: "https://embed.example.com/d1", RequestID: "req-1"}, nil
	}}
	router := NewRouter(NewHandler(testDeps(resolver, nil)))

	resp, err := router.Route(ctx, request(http.MethodGet, "/v1/aws", map[string]string{"idToken": "t", "dashboardName": "Ops"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestHandler_LazyLoad(t *testing.T) {
	loads := 0
	h := NewHandler(nil)
	h.load = func(context.Context) (*Deps, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("GetParametersByPath /embedrelay/prod: AccessDeniedException: arn:aws:iam::123456789012:role/relay")
		}
		return testDeps(&fakeResolver{}, nil), nil
	}
	router := NewRouter(h)

	resp, err := router.Route(context.Background(), request(http.MethodGet, "/v1/aws/auth", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeError(t, resp.Body)
	if body.Code != "CONFIG_ERROR" {
		t.Errorf("code = %q, want CONFIG_ERROR", body.Code)
	}
	if strings.Contains(body.Message, "AccessDenied") || strings.Contains(body.Message, "123456789012") {
		t.Errorf("message leaks load error: %q", body.Message)
	}

	for i := 0; i < 2; i++ {
		resp, err = router.Route(context.Background(), request(http.MethodGet, "/v1/aws", map[string]string{"idToken": "t"}))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	}
	if loads != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}
}

func TestRoute_StatusSkipsLoad(t *testing.T) {
	h := NewHandler(nil)
	h.load = func(context.Context) (*Deps, error) {
		t.Fatal("status route must not load configuration")
		return nil, nil
	}

	resp, err := NewRouter(h).Route(context.Background(), request(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
