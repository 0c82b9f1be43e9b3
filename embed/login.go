package embed

import (
	"fmt"
	"net/url"
	"strings"
)

// LoginConfig describes the Cognito hosted UI.
type LoginConfig struct {
	// AppName is the Cognito domain prefix: <app>.auth.<region>.amazoncognito.com.
	AppName string

	// Domain overrides the hosted UI host (custom domains).
	Domain string

	// Region of the user pool; defaults to the resolver's region.
	Region string

	ClientID    string
	RedirectURI string

	// Scopes default to openid and profile.
	Scopes []string

	// ResponseType defaults to "token" (implicit grant returning id_token).
	ResponseType string
}

// Host returns the hosted UI host name.
func (c LoginConfig) Host() string {
	if c.Domain != "" {
		return strings.TrimSuffix(strings.TrimPrefix(c.Domain, "https://"), "/")
	}
	return fmt.Sprintf("%s.auth.%s.amazoncognito.com", c.AppName, c.Region)
}

// URL returns the hosted UI authorization URL. Scopes are joined with '+'
// as Cognito documents; the other values are query-escaped.
func (c LoginConfig) URL() string {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile"}
	}
	escaped := make([]string, len(scopes))
	for i, s := range scopes {
		escaped[i] = url.QueryEscape(s)
	}
	responseType := c.ResponseType
	if responseType == "" {
		responseType = "token"
	}

	return fmt.Sprintf("https://%s/login?client_id=%s&response_type=%s&scope=%s&redirect_uri=%s",
		c.Host(),
		url.QueryEscape(c.ClientID),
		url.QueryEscape(responseType),
		strings.Join(escaped, "+"),
		url.QueryEscape(c.RedirectURI),
	)
}
