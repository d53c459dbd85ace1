package httpx

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-table-orders.git/internal/orders"
)

func TestCreateQR_OK(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 20, 0, 0, time.UTC)
	st := &stubStore{order: orders.Order{
		ID: 7, Code: "ABCDEF1234", TableNumber: 3,
		Total: 60500, Status: orders.StatusPending, ExpiresAt: &expires,
	}}
	r := NewRouter()
	(&PaymentsHandler{Svc: newTestHandler(st).Svc}).Register(r)

	req := httptest.NewRequest("POST", "/api/payments/7/create", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body)
	}
	var qr orders.PaymentQR
	if err := json.NewDecoder(rec.Body).Decode(&qr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if qr.QRString != "COBEK|ORDER=ABCDEF1234|TOTAL=60500" {
		t.Errorf("qr_string = %q", qr.QRString)
	}
	if qr.Amount != 60500 {
		t.Errorf("amount = %d, want 60500", qr.Amount)
	}
}

func TestCreateQR_AlreadyPaid(t *testing.T) {
	st := &stubStore{order: orders.Order{ID: 7, Code: "ABCDEF1234", Status: orders.StatusPaid}}
	r := NewRouter()
	(&PaymentsHandler{Svc: newTestHandler(st).Svc}).Register(r)

	req := httptest.NewRequest("POST", "/api/payments/7/create", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_Paid(t *testing.T) {
	expires := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	st := &stubStore{
		order:      orders.Order{ID: 7, Code: "ABCDEF1234", Status: orders.StatusPending, ExpiresAt: &expires},
		markPaidOK: true,
	}
	r := NewRouter()
	(&PaymentsHandler{Svc: newTestHandler(st).Svc}).Register(r)

	body := `{"order_code":"ABCDEF1234","status":"paid","reference":"TRX-001"}`
	req := httptest.NewRequest("POST", "/api/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	var resp map[string]bool
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if !resp["ok"] {
		t.Errorf("body = %s, want ok true", rec.Body)
	}
}

func TestWebhook_UnknownStatusStillOK(t *testing.T) {
	st := &stubStore{order: orders.Order{ID: 7, Code: "ABCDEF1234", Status: orders.StatusPending}}
	r := NewRouter()
	(&PaymentsHandler{Svc: newTestHandler(st).Svc}).Register(r)

	body := `{"order_code":"ABCDEF1234","status":"REFUND_REQUESTED"}`
	req := httptest.NewRequest("POST", "/api/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
}

func TestWebhook_OrderNotFound(t *testing.T) {
	st := &stubStore{getErr: orders.ErrNotFound}
	r := NewRouter()
	(&PaymentsHandler{Svc: newTestHandler(st).Svc}).Register(r)

	body := `{"order_code":"ZZZZZZZZZZ","status":"paid"}`
	req := httptest.NewRequest("POST", "/api/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWebhook_MissingFields(t *testing.T) {
	r := NewRouter()
	(&PaymentsHandler{Svc: newTestHandler(&stubStore{}).Svc}).Register(r)

	req := httptest.NewRequest("POST", "/api/payments/webhook", strings.NewReader(`{"order_code":""}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
