package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// ErrorResponse is the JSON body of every error. Code, Suggestion and Error
// are only filled in development.
type ErrorResponse struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Error      string `json:"error,omitempty"`
}

// errorResponse maps err to a status and body. Relay errors keep their
// status and message; echo errors keep theirs; anything else is a 500 with
// a generic message.
func errorResponse(err error, development bool) (int, ErrorResponse) {
	var (
		status int
		body   ErrorResponse
	)

	var he *echo.HTTPError
	if re, ok := relayerrors.AsRelayError(err); ok {
		status = re.StatusCode()
		body.Message = re.Error()
		if development {
			body.Code = re.Code()
			body.Suggestion = re.Suggestion()
		}
	} else if errors.As(err, &he) {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		} else {
			body.Message = http.StatusText(he.Code)
		}
	} else {
		status = http.StatusInternalServerError
		body.Message = http.StatusText(status)
		if development {
			body.Code = relayerrors.ErrCodeInternal
		}
	}

	if development {
		if cause := errors.Unwrap(err); cause != nil {
			body.Error = cause.Error()
		}
	}
	return status, body
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(err, s.config.IsDevelopment())
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.Printf("ERROR: write error response: %v", err)
	}
}
