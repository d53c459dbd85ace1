package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-table-orders.git/internal/orders"
)

type PaymentsHandler struct {
	Svc *orders.Service
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/payments/{id}/create", h.createQR)
	r.Post("/api/payments/webhook", h.webhook)
}

func (h *PaymentsHandler) createQR(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qr, err := h.Svc.CreatePaymentQR(ctx, id)
	if err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, qr)
}

type webhookReq struct {
	OrderCode string  `json:"order_code"`
	Status    string  `json:"status"`
	Reference *string `json:"reference"`
}

// webhook dipanggil gateway saat pembayaran sukses/kadaluarsa. Status yang
// tidak dikenal tetap dijawab ok (lihat Service.ApplyWebhook).
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.OrderCode == "" || req.Status == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "order_code and status are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.ApplyWebhook(ctx, req.OrderCode, req.Status, req.Reference); err != nil {
		writeOrderErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
