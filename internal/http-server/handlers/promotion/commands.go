package promotion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"promoreg/entity"
	"promoreg/lib/api/cont"
	"promoreg/lib/api/response"
	"promoreg/lib/sl"
)

// Commands is the owner-only mutation surface. The caller identity comes from the
// authenticated user; the registry decides whether it is the owner.
type Commands interface {
	CreatePromotion(ctx context.Context, caller string, req *entity.CreatePromotion) (*entity.Created, error)
	ApplyToCustomer(ctx context.Context, caller string, slot uint64, customer string) (*entity.CustomerUsage, error)
	RemoveCustomer(ctx context.Context, caller string, slot uint64, customer string) (*entity.CustomerUsage, error)
	DeletePromotion(ctx context.Context, caller string, slot uint64) error
}

func Create(log *slog.Logger, handler Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.promotion")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.CreatePromotion
		if err := render.Bind(r, &req); err != nil {
			logger.Info("invalid request body", sl.Err(err))
			badRequest(w, r, fmt.Sprintf("Invalid request: %v", err))
			return
		}
		logger = logger.With(slog.String("name", req.Name))

		created, err := handler.CreatePromotion(r.Context(), cont.Caller(r.Context()), &req)
		if err != nil {
			logFailure(logger, "create promotion", err)
			fail(w, r, err)
			return
		}
		logger.With(sl.Slot(created.Slot)).Info("promotion created")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(created))
	}
}

func Apply(log *slog.Logger, handler Commands) http.HandlerFunc {
	return customerCommand(log, "apply", handler.ApplyToCustomer)
}

func Remove(log *slog.Logger, handler Commands) http.HandlerFunc {
	return customerCommand(log, "remove", handler.RemoveCustomer)
}

type customerFunc func(ctx context.Context, caller string, slot uint64, customer string) (*entity.CustomerUsage, error)

func customerCommand(log *slog.Logger, operation string, fn customerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.promotion")

		logger := log.With(
			mod,
			slog.String("operation", operation),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slot, err := slotParam(r)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}

		var req entity.CustomerRequest
		if err = render.Bind(r, &req); err != nil {
			logger.Info("invalid request body", sl.Err(err))
			badRequest(w, r, fmt.Sprintf("Invalid request: %v", err))
			return
		}
		logger = logger.With(sl.Slot(slot), sl.Customer(req.CustomerId))

		usage, err := fn(r.Context(), cont.Caller(r.Context()), slot, req.CustomerId)
		if err != nil {
			logFailure(logger, "customer command", err)
			fail(w, r, err)
			return
		}
		logger.With(slog.Int64("usage", usage.Usage)).Debug("customer command done")

		render.JSON(w, r, response.Ok(usage))
	}
}

func Delete(log *slog.Logger, handler Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.promotion")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slot, err := slotParam(r)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		logger = logger.With(sl.Slot(slot))

		if err = handler.DeletePromotion(r.Context(), cont.Caller(r.Context()), slot); err != nil {
			logFailure(logger, "delete promotion", err)
			fail(w, r, err)
			return
		}
		logger.Info("promotion deleted")

		render.JSON(w, r, response.Ok(nil))
	}
}
