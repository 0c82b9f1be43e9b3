package lambda

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"

	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/ratelimit"
)

// Handler serves the relay routes. Its dependencies are loaded on the first
// request unless given up front; a failed load is retried on the next one.
type Handler struct {
	mu   sync.Mutex
	deps *Deps
	load func(ctx context.Context) (*Deps, error)
}

// NewHandler creates a Handler. With nil deps, configuration is loaded from
// the environment on first use.
func NewHandler(deps *Deps) *Handler {
	return &Handler{deps: deps, load: LoadDepsFromEnv}
}

func (h *Handler) dependencies(ctx context.Context) (*Deps, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deps != nil {
		return h.deps, nil
	}
	deps, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Unlimited{}
	}
	h.deps = deps
	return deps, nil
}

// HandleLogin redirects to the Cognito hosted UI.
func (h *Handler) HandleLogin(deps *Deps, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": deps.Resolver.LoginURL()},
	}
}

// HandleEmbed resolves the embed URL for the idToken and dashboardName
// query parameters and returns it as a JSON string. Service calls are not
// cancelled with ctx; they run to completion like on the HTTPS server.
func (h *Handler) HandleEmbed(ctx context.Context, deps *Deps, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	sourceIP := req.RequestContext.HTTP.SourceIP
	allowed, retryAfter, err := deps.Limiter.Allow(ctx, sourceIP)
	if err != nil {
		log.Printf("WARNING: rate limiter error for %s: %v", sourceIP, err)
	}
	if !allowed {
		resp := relayErrorResponse(relayerrors.New(relayerrors.KindRateLimited, http.StatusText(http.StatusTooManyRequests), nil))
		resp.Headers["Retry-After"] = strconv.Itoa(max(int(math.Ceil(retryAfter.Seconds())), 1))
		return resp
	}

	idToken := strings.TrimSpace(req.QueryStringParameters["idToken"])
	if idToken == "" {
		return relayErrorResponse(relayerrors.New(relayerrors.KindInvalidToken, "idToken query parameter is required", nil))
	}

	result, err := deps.Resolver.ResolveEmbedURL(context.WithoutCancel(ctx), idToken, req.QueryStringParameters["dashboardName"])
	if err != nil {
		return relayErrorResponse(err)
	}

	resp := jsonResponse(http.StatusOK, result.URL)
	resp.Headers["X-Request-Id"] = result.RequestID
	return resp
}

// jsonResponse encodes v as the response body. Responses are never cached.
func jsonResponse(status int, v any) events.APIGatewayV2HTTPResponse {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: encode response: %v", err)
		return errorResponse(http.StatusInternalServerError, relayerrors.ErrCodeInternal, http.StatusText(http.StatusInternalServerError))
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":  "application/json; charset=utf-8",
			"Cache-Control": "no-store",
		},
		Body: string(body),
	}
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	return jsonResponse(status, ErrorBody{Message: message, Code: code})
}

// relayErrorResponse maps err onto its status. Unclassified errors become
// a generic 500.
func relayErrorResponse(err error) events.APIGatewayV2HTTPResponse {
	re, ok := relayerrors.AsRelayError(err)
	if !ok {
		log.Printf("ERROR: unclassified error: %v", err)
		return errorResponse(http.StatusInternalServerError, relayerrors.ErrCodeInternal, http.StatusText(http.StatusInternalServerError))
	}
	return errorResponse(re.StatusCode(), re.Code(), re.Error())
}
