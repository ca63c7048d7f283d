package promotion

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"promoreg/internal/registry"
	"promoreg/lib/api/response"
	"promoreg/lib/sl"
)

// statusOf maps registry error kinds to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidName),
		errors.Is(err, registry.ErrInvalidLimits),
		errors.Is(err, registry.ErrInvalidExpiry),
		errors.Is(err, registry.ErrInvalidCustomer):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrDuplicatePromotion),
		errors.Is(err, registry.ErrCapacityExceeded),
		errors.Is(err, registry.ErrCustomerNotActive):
		return http.StatusConflict
	case errors.Is(err, registry.ErrPromotionNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrPromotionExpired):
		return http.StatusGone
	case errors.Is(err, registry.ErrUsageLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, registry.ErrJournalUnavailable):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// logFailure logs business rejections at info, owner-guard violations at warn and
// server faults at error.
func logFailure(logger *slog.Logger, msg string, err error) {
	switch statusOf(err) {
	case http.StatusInternalServerError:
		logger.Error(msg, sl.Err(err))
	case http.StatusForbidden:
		logger.Warn(msg, sl.Err(err))
	default:
		logger.Info(msg, sl.Err(err))
	}
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Request failed"
	}
	render.Status(r, status)
	render.JSON(w, r, response.Failed(registry.Kind(err), message))
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(message))
}

func slotParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "slot")
	slot, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || slot == 0 {
		return 0, fmt.Errorf("invalid slot %q", raw)
	}
	return slot, nil
}

// pathParam returns a decoded route parameter. chi matches on RawPath when the
// request carries one (e.g. an encoded '/'), and on the already decoded Path otherwise.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	value, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return value
}
