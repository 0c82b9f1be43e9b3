package lambda

import (
	"context"
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Route paths, matching the HTTPS server.
const (
	PathStatus = "/"
	PathLogin  = "/v1/aws/auth"
	PathEmbed  = "/v1/aws"
)

// Router dispatches API Gateway requests:
//   - GET /            -> status
//   - GET /v1/aws/auth -> redirect to the Cognito hosted UI
//   - GET /v1/aws      -> embed URL
type Router struct {
	handler *Handler
}

// NewRouter creates a Router for handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Route handles an API Gateway v2 HTTP request.
func (r *Router) Route(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := strings.TrimSuffix(req.RawPath, "/")
	if path == "" {
		path = PathStatus
	}

	switch path {
	case PathStatus, PathLogin, PathEmbed:
	default:
		return errorResponse(http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound)), nil
	}

	method := req.RequestContext.HTTP.Method
	if method != http.MethodGet && method != http.MethodOptions {
		return errorResponse(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", http.StatusText(http.StatusMethodNotAllowed)), nil
	}

	if path == PathStatus {
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"}), nil
	}

	deps, err := r.handler.dependencies(ctx)
	if err != nil {
		log.Printf("ERROR: failed to load configuration: %v", err)
		return errorResponse(http.StatusInternalServerError, "CONFIG_ERROR", "Failed to load configuration"), nil
	}

	var resp events.APIGatewayV2HTTPResponse
	switch {
	case method == http.MethodOptions:
		resp = events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent, Headers: map[string]string{}}
	case path == PathLogin:
		resp = r.handler.HandleLogin(deps, req)
	default:
		resp = r.handler.HandleEmbed(ctx, deps, req)
	}
	addCORSHeaders(resp, req, deps.Config.Origins())
	return resp, nil
}

// addCORSHeaders allows credentialed requests from configured origins.
func addCORSHeaders(resp events.APIGatewayV2HTTPResponse, req events.APIGatewayV2HTTPRequest, origins []string) {
	origin := req.Headers["origin"]
	if origin == "" || !slices.Contains(origins, origin) {
		return
	}
	resp.Headers["Access-Control-Allow-Origin"] = origin
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET, OPTIONS"
	resp.Headers["Vary"] = "Origin"
}
