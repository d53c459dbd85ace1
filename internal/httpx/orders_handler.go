package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-table-orders.git/internal/orders"
)

type OrdersHandler struct {
	Svc *orders.Service
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Patch("/api/orders/pay", h.markPaid)
	r.Patch("/api/orders/{id}/cancel", h.cancelOrder)
	r.Get("/api/customers/history", h.historyPaid)
	r.Get("/api/customers/history/unpaid", h.historyUnpaid)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOrderErr memetakan taksonomi error domain ke status HTTP.
func writeOrderErr(w http.ResponseWriter, err error) {
	var nc *orders.NotCancellableError
	switch {
	case errors.As(err, &nc):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  nc.Error(),
			"status": string(nc.Status),
		})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, orders.ErrUnknownItem),
		errors.Is(err, orders.ErrInvalidAmount),
		errors.Is(err, orders.ErrInvalidTable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrOrderExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrNotPending):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

type CreateOrderReq struct {
	TableNumber   int                `json:"table_number"`
	CustomerToken string             `json:"customer_token"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	CustomerEmail string             `json:"customer_email"`
	CustomerNote  *string            `json:"customer_note"`
	Items         []orders.ItemInput `json:"items"`
}

// validate: aturan field sama dengan form checkout (panjang maksimum dkk).
// Return nama field + pesan supaya client tahu mana yang salah.
func (req *CreateOrderReq) validate() (string, string) {
	switch {
	case req.TableNumber < 1:
		return "table_number", "table_number is required"
	case req.CustomerToken == "" || len(req.CustomerToken) > 100:
		return "customer_token", "customer_token is required (max 100 chars)"
	case req.CustomerName == "" || len(req.CustomerName) > 40:
		return "customer_name", "customer_name is required (max 40 chars)"
	case req.CustomerPhone == "" || len(req.CustomerPhone) > 20:
		return "customer_phone", "customer_phone is required (max 20 chars)"
	case req.CustomerEmail == "" || len(req.CustomerEmail) > 255:
		return "customer_email", "customer_email is required (max 255 chars)"
	case req.CustomerNote != nil && len(*req.CustomerNote) > 255:
		return "customer_note", "customer_note too long (max 255 chars)"
	case len(req.Items) == 0:
		return "items", "at least one item is required"
	}
	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return "customer_email", "customer_email is not a valid address"
	}
	for i, it := range req.Items {
		if it.MenuID < 1 {
			return fmt.Sprintf("items.%d.menu_id", i), "menu_id is required"
		}
		if it.Qty < 1 {
			return fmt.Sprintf("items.%d.qty", i), "qty must be at least 1"
		}
	}
	return "", ""
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if field, msg := req.validate(); field != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg, "field": field})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Svc.Create(ctx, orders.CreateOrderInput{
		TableNumber:   req.TableNumber,
		CustomerToken: req.CustomerToken,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		CustomerNote:  req.CustomerNote,
		Items:         req.Items,
	})
	if err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ord)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ord, err := h.Svc.Get(ctx, id)
	if err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

type markPaidReq struct {
	TableNumber   int    `json:"table_number"`
	CustomerToken string `json:"customer_token"`
}

func (h *OrdersHandler) markPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.TableNumber < 1 || req.CustomerToken == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "table_number and customer_token are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.Svc.MarkTablePaid(ctx, req.TableNumber, req.CustomerToken)
	if err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     fmt.Sprintf("Successfully marked %d order(s) as paid.", n),
		"orders_paid": n,
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ord, err := h.Svc.Cancel(ctx, id)
	if err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) historyPaid(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, orders.StatusPaid)
}

func (h *OrdersHandler) historyUnpaid(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, orders.StatusPending)
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request, status orders.Status) {
	table, err := strconv.Atoi(r.URL.Query().Get("table"))
	token := r.URL.Query().Get("token")
	if err != nil || table < 1 || token == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "table and token query params are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Svc.History(ctx, table, token, status)
	if err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
