package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-table-orders.git/internal/menu"
	"github.com/ariefcatur/go-table-orders.git/internal/redisx"
)

type MenusHandler struct {
	Repo  *menu.Repo
	Redis *redis.Client // optional; cache listing
}

func (h *MenusHandler) Register(r *chi.Mux) {
	r.Get("/api/menus", h.listMenus)
	r.Get("/api/menus/{id}", h.getMenu)
}

func (h *MenusHandler) listMenus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// katalog jarang berubah; cukup cache TTL pendek, tanpa invalidation
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, redisx.KeyMenuListing).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	cats, err := h.Repo.ListActive(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	b, err := json.Marshal(cats)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, redisx.KeyMenuListing, b, redisx.TTLMenuCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *MenusHandler) getMenu(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	m, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m)
}
