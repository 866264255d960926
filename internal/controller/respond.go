package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/llm"
)

type errorBody struct {
	Error  string                 `json:"error"`
	Fields []appErrors.FieldError `json:"fields,omitempty"`
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	var (
		nf  *appErrors.ErrNotFound
		ve  *appErrors.ValidationError
		pe  *ai.ParseError
		rve *ai.ResponseValidationError
		ae  *llm.APIError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrNoSchoolSelected):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, appErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrCampaignSent),
		errors.Is(err, appErrors.ErrCampaignExists),
		errors.Is(err, appErrors.ErrContentItemResolved),
		errors.Is(err, appErrors.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.As(err, &pe), errors.As(err, &rve), errors.As(err, &ae):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Responder writes JSON bodies and error responses. Server errors are logged and reported to
// Sentry; their details never reach the client.
type Responder struct {
	Log *slog.Logger
}

func NewResponder(log *slog.Logger) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{Log: log}
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.Log.Error("encoding response", slog.Any("error", err))
	}
}

// Error matches auth.ErrorWriter.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := errorBody{Error: err.Error()}

	var ve *appErrors.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	var rve *ai.ResponseValidationError
	if errors.As(err, &rve) {
		body.Fields = rve.Fields
	}

	if status >= http.StatusInternalServerError {
		rs.Log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		rs.report(r, err)
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}
	rs.JSON(w, status, body)
}

func (rs *Responder) report(r *http.Request, err error) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(r)
		scope.SetTag("route", routePattern(r))
		if id := middleware.GetReqID(r.Context()); id != "" {
			scope.SetTag("request_id", id)
		}
		hub.CaptureException(err)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// decode reads a JSON body into dst. Malformed JSON is a validation error.
func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return appErrors.NewValidationError(errors.Wrap(err, "invalid request body"))
	}
	return nil
}

// IDParam reads a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, appErrors.NewValidationError(nil, appErrors.FieldError{Field: name, Error: name + " must be a positive integer"})
	}
	return id, nil
}
