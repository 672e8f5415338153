package http

import (
	"context"
	"errors"
	"net/http"

	"billtrack/internal/core"
	"billtrack/internal/notify"
	"billtrack/internal/parser"
	"billtrack/internal/ports"
)

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrUnknownCategory,
	core.ErrInvalidStatus,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrBillNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, parser.ErrEmptyText), errors.Is(err, ErrEmptyBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type noticesKey struct{}

// withNotices collects the notices produced while serving the request so
// the response can carry them.
func withNotices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &notify.Recorder{}
		ctx := notify.WithNotifier(r.Context(), rec)
		ctx = context.WithValue(ctx, noticesKey{}, rec)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func noticesFrom(ctx context.Context) []notify.Notice {
	if rec, ok := ctx.Value(noticesKey{}).(*notify.Recorder); ok {
		return rec.Notices()
	}
	return nil
}
