package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/gateway"
	"github.com/JakeFAU/turboduck/internal/search"
)

const (
	codeRateLimited        = "rate_limited"
	codeInvalidInput       = "invalid_input"
	codeBackendUnavailable = "backend_unavailable"
	codeFetchFailed        = "fetch_failed"
	codeExtractionFailed   = "extraction_failed"
	codeNotConfigured      = "not_configured"
	codeTimeout            = "timeout"
	codeInternal           = "internal"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a pipeline error to an HTTP status and error code.
func classify(err error) (int, string) {
	var (
		admission  *search.AdmissionError
		transcript *search.TranscriptError
	)
	switch {
	case errors.As(err, &admission), errors.Is(err, search.ErrAdmissionDenied):
		return http.StatusTooManyRequests, codeRateLimited
	case errors.Is(err, search.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case errors.As(err, &transcript):
		return http.StatusNotFound, string(transcript.Kind)
	case errors.Is(err, search.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, codeBackendUnavailable
	case errors.Is(err, search.ErrFetchFailed):
		return http.StatusBadGateway, codeFetchFailed
	case errors.Is(err, search.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, codeExtractionFailed
	case errors.Is(err, gateway.ErrUnsupported):
		return http.StatusNotImplemented, codeNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	var admission *search.AdmissionError
	if errors.As(err, &admission) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(admission.RetryAfter.Seconds()))))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	s.writeJSON(w, status, errorBody{Error: code, Message: msg})
}
