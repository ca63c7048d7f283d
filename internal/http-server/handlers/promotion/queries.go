package promotion

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"promoreg/entity"
	"promoreg/internal/registry"
	"promoreg/lib/api/response"
)

// Queries is the unauthenticated read surface.
type Queries interface {
	Owner() *entity.Owner
	PromotionExists(name string) *entity.Existence
	PromotionByName(name string) (*entity.Promotion, error)
	PromotionBySlot(slot uint64) (*entity.Promotion, error)
	Promotions() []*entity.Promotion
	Participants(slot uint64) ([]string, error)
	ActiveCustomers(slot uint64) ([]string, error)
	CustomerUsage(slot uint64, customer string) (*entity.CustomerUsage, error)
	Events(ctx context.Context, slot uint64, limit int64) ([]registry.Event, error)
}

func Owner(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.Owner()))
	}
}

func List(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.Promotions()))
	}
}

func Exists(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.PromotionExists(pathParam(r, "name"))))
	}
}

func ByName(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := handler.PromotionByName(pathParam(r, "name"))
		if err != nil {
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(p))
	}
}

func BySlot(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return slotQuery(func(slot uint64, _ *http.Request) (interface{}, error) {
		return handler.PromotionBySlot(slot)
	})
}

func Participants(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return slotQuery(func(slot uint64, _ *http.Request) (interface{}, error) {
		return handler.Participants(slot)
	})
}

func Active(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return slotQuery(func(slot uint64, _ *http.Request) (interface{}, error) {
		return handler.ActiveCustomers(slot)
	})
}

func Usage(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return slotQuery(func(slot uint64, r *http.Request) (interface{}, error) {
		return handler.CustomerUsage(slot, pathParam(r, "customer"))
	})
}

func Events(_ *slog.Logger, handler Queries) http.HandlerFunc {
	return slotQuery(func(slot uint64, r *http.Request) (interface{}, error) {
		limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
		return handler.Events(r.Context(), slot, limit)
	})
}

func slotQuery(fn func(slot uint64, r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := slotParam(r)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		data, err := fn(slot, r)
		if err != nil {
			fail(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(data))
	}
}
