package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/natours/natours/internal/shared"
)

// GenericMessage is returned for failures that must not leak internals.
const GenericMessage = "Something went very wrong!"

// RespondError maps classified errors to JSON responses. Unclassified and
// non-operational errors are logged in full and answered generically.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var appErr *shared.Error
	if errors.As(err, &appErr) && appErr.Operational {
		status := appErr.Kind.HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.Error("dependency failure",
				slog.String("reason", appErr.Reason),
				slog.String("request_id", requestID(r)),
				slog.Any("error", err))
		}
		Fail(w, status, appErr.Message)
		return
	}
	logger.Error("unhandled error",
		slog.String("request_id", requestID(r)),
		slog.Any("error", err))
	Fail(w, http.StatusInternalServerError, GenericMessage)
}

func requestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	return middleware.GetReqID(r.Context())
}
