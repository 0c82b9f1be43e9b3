package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// StatusResponse is returned by the status route.
type StatusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

// handleLogin redirects the browser to the Cognito hosted UI.
func (s *Server) handleLogin(c echo.Context) error {
	return c.Redirect(http.StatusFound, s.resolver.LoginURL())
}

// handleEmbed resolves an embed URL and returns it as a JSON string.
// Service calls run to completion even if the client disconnects; the result
// is then discarded.
func (s *Server) handleEmbed(c echo.Context) error {
	idToken := strings.TrimSpace(c.QueryParam("idToken"))
	dashboardName := c.QueryParam("dashboardName")

	if idToken == "" {
		return relayerrors.New(relayerrors.KindInvalidToken, "idToken query parameter is required", nil)
	}

	result, err := s.resolver.ResolveEmbedURL(context.WithoutCancel(c.Request().Context()), idToken, dashboardName)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderXRequestID, result.RequestID)
	return c.JSON(http.StatusOK, result.URL)
}
