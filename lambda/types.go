// Package lambda serves the relay routes from AWS Lambda behind an API
// Gateway HTTP API (payload format 2.0).
package lambda

import (
	"context"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/embed"
	"github.com/byteness/embedrelay/ratelimit"
)

// Resolver is the part of embed.Resolver the handler uses.
type Resolver interface {
	ResolveEmbedURL(ctx context.Context, idToken, dashboardName string) (*embed.Result, error)
	LoginURL() string
}

// Deps are the components a Handler serves with.
type Deps struct {
	Config   *config.Config
	Resolver Resolver
	Limiter  ratelimit.RateLimiter
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
