package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/marmos91/imgloader/pkg/loader"
)

// writeLoadError maps a loader error to its HTTP status and error body.
//
//	InvalidKeyError  -> 400 INVALID_URL
//	NetworkError     -> 502 UPSTREAM_ERROR
//	ErrCanceled      -> 409 CANCELED
//	ErrClosed        -> 503 UNAVAILABLE
//	deadline         -> 504 TIMEOUT
func writeLoadError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

func errorBody(err error) (int, ErrorBody) {
	var (
		ike *loader.InvalidKeyError
		ne  *loader.NetworkError
	)
	switch {
	case errors.As(err, &ike):
		return http.StatusBadRequest, ErrorBody{Code: CodeInvalidURL, Message: ike.Error(), Details: ike.Reason}
	case errors.As(err, &ne):
		return http.StatusBadGateway, ErrorBody{
			Code:           CodeUpstreamError,
			Message:        ne.Error(),
			UpstreamStatus: ne.StatusCode,
		}
	case errors.Is(err, loader.ErrCanceled):
		return http.StatusConflict, ErrorBody{Code: CodeCanceled, Message: err.Error()}
	case errors.Is(err, loader.ErrClosed):
		return http.StatusServiceUnavailable, ErrorBody{Code: CodeUnavailable, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorBody{Code: CodeTimeout, Message: "timed out waiting for image"}
	case errors.Is(err, context.Canceled):
		// Client went away; the status is never seen.
		return 499, ErrorBody{Code: CodeCanceled, Message: "request canceled"}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: err.Error()}
	}
}
