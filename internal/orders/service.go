package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-table-orders.git/internal/kafka"
	"github.com/ariefcatur/go-table-orders.git/internal/redisx"
)

// Store: operasi persistence yang dibutuhkan service (dipenuhi *Repo;
// test pakai fake).
type Store interface {
	CreateOrder(ctx context.Context, in CreateOrderInput, feeRatePct int, ttl time.Duration, now time.Time) (Order, error)
	GetByID(ctx context.Context, id int64, now time.Time) (Order, bool, error)
	GetByCode(ctx context.Context, code string) (Order, error)
	MarkPaid(ctx context.Context, id int64, ref *string, now time.Time) (bool, error)
	Expire(ctx context.Context, id int64, now time.Time) (bool, error)
	Cancel(ctx context.Context, id int64, now time.Time) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) ([]Ref, error)
	SweepExpiredFor(ctx context.Context, table int, token string, now time.Time) ([]Ref, error)
	MarkAllPaid(ctx context.Context, table int, token string, now time.Time) ([]Ref, error)
	ListByCustomer(ctx context.Context, table int, token string, status Status, now time.Time) ([]Order, error)
	SetQRString(ctx context.Context, id int64, payload string, now time.Time) error
}

// Publisher: subset kafkax.Producer yang dipakai service.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store       Store
	Redis       *redis.Client // optional; cache status best-effort
	Producer    Publisher     // optional; lifecycle events
	ServiceName string

	FeeRatePct int
	OrderTTL   time.Duration
	TableCount int

	// Now dioverride di test untuk simulasi jam maju.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create: checkout → validasi meja, resolve harga katalog + hitung total di
// dalam transaksi, simpan order pending + snapshot item, publish OrderCreated.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (Order, error) {
	if in.TableNumber < 1 || in.TableNumber > s.TableCount {
		return Order{}, fmt.Errorf("%w: %d", ErrInvalidTable, in.TableNumber)
	}
	if len(in.Items) == 0 {
		return Order{}, fmt.Errorf("%w: no items", ErrInvalidAmount)
	}
	for _, it := range in.Items {
		if it.Qty < 1 {
			return Order{}, fmt.Errorf("%w: qty %d for menu_id=%d", ErrInvalidAmount, it.Qty, it.MenuID)
		}
	}

	ord, err := s.Store.CreateOrder(ctx, in, s.FeeRatePct, s.OrderTTL, s.now())
	if err != nil {
		return Order{}, err
	}

	snaps := make([]ItemSnapshot, 0, len(ord.Items))
	for _, it := range ord.Items {
		snaps = append(snaps, ItemSnapshot{MenuID: it.MenuID, Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	s.publish(ctx, EventOrderCreated, TopicOrderCreated, ord.Code, OrderCreatedPayload{
		OrderID:     ord.ID,
		OrderCode:   ord.Code,
		TableNumber: ord.TableNumber,
		Items:       snaps,
		Subtotal:    ord.Subtotal,
		OtherFees:   ord.OtherFees,
		Total:       ord.Total,
	})
	s.cacheStatus(ctx, ord.ID, ord.Status)
	return ord, nil
}

// Get: baca order by id; pending yang sudah lewat deadline otomatis jadi
// expired sebelum dikembalikan.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	ord, expiredNow, err := s.Store.GetByID(ctx, id, s.now())
	if err != nil {
		return Order{}, err
	}
	if expiredNow {
		s.publish(ctx, EventOrderExpired, TopicOrderExpired, ord.Code, OrderExpiredPayload{
			OrderID: ord.ID, OrderCode: ord.Code, TableNumber: ord.TableNumber,
		})
	}
	s.cacheStatus(ctx, ord.ID, ord.Status)
	return ord, nil
}

// Cancel: hanya pending (setelah lazy expire) yang bisa dibatalkan.
func (s *Service) Cancel(ctx context.Context, id int64) (Order, error) {
	ord, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if ord.Status != StatusPending {
		return Order{}, &NotCancellableError{Status: ord.Status}
	}

	now := s.now()
	ok, err := s.Store.Cancel(ctx, ord.ID, now)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		// barusan masih pending, sekarang bukan: kalah race
		return Order{}, ErrConflict
	}
	ord.Status = StatusCancelled
	ord.UpdatedAt = now

	s.publish(ctx, EventOrderCancelled, TopicOrderCancelled, ord.Code, OrderCancelledPayload{
		OrderID: ord.ID, OrderCode: ord.Code, TableNumber: ord.TableNumber,
	})
	s.cacheStatus(ctx, ord.ID, ord.Status)
	return ord, nil
}

// MarkTablePaid: aksi staff "tandai semua lunas" per meja+token. Pending
// yang sudah lewat deadline di-expire dulu supaya tidak ikut terbayar,
// sisanya di-flip paid sekaligus. Return jumlah order yang terbayar.
func (s *Service) MarkTablePaid(ctx context.Context, table int, token string) (int, error) {
	if table < 1 || table > s.TableCount {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTable, table)
	}
	now := s.now()

	swept, err := s.Store.SweepExpiredFor(ctx, table, token, now)
	if err != nil {
		return 0, err
	}
	s.publishExpired(ctx, swept)

	paid, err := s.Store.MarkAllPaid(ctx, table, token, now)
	if err != nil {
		return 0, err
	}
	for _, ref := range paid {
		s.publish(ctx, EventOrderPaid, TopicOrderPaid, ref.Code, OrderPaidPayload{
			OrderID: ref.ID, OrderCode: ref.Code, TableNumber: ref.TableNumber, PaidAt: now,
		})
		s.cacheStatus(ctx, ref.ID, StatusPaid)
	}
	return len(paid), nil
}

// ApplyWebhook: sinyal dari payment gateway, keyed by order code. Outcome
// PAID mengikuti aturan transisi biasa (cek expiry dulu); EXPIRED memaksa
// pending jadi expired tanpa lihat deadline. Outcome lain diterima tanpa
// efek — webhook gateway longgar speknya, jangan gagalkan call.
func (s *Service) ApplyWebhook(ctx context.Context, code, outcome string, ref *string) error {
	ord, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	now := s.now()

	switch strings.ToUpper(outcome) {
	case "PAID":
		if ord.Status == StatusPending && ord.ExpiresAt != nil && now.After(*ord.ExpiresAt) {
			// telat bayar: expired menang, konfirmasi paid ditolak
			if ok, err := s.Store.Expire(ctx, ord.ID, now); err != nil {
				return err
			} else if ok {
				s.publishExpired(ctx, []Ref{{ID: ord.ID, Code: ord.Code, TableNumber: ord.TableNumber}})
				s.cacheStatus(ctx, ord.ID, StatusExpired)
			}
			return nil
		}
		ok, err := s.Store.MarkPaid(ctx, ord.ID, ref, now)
		if err != nil {
			return err
		}
		if ok {
			s.publish(ctx, EventOrderPaid, TopicOrderPaid, ord.Code, OrderPaidPayload{
				OrderID: ord.ID, OrderCode: ord.Code, TableNumber: ord.TableNumber,
				Total: ord.Total, PaymentRef: ref, PaidAt: now,
			})
			s.cacheStatus(ctx, ord.ID, StatusPaid)
		}
	case "EXPIRED":
		ok, err := s.Store.Expire(ctx, ord.ID, now)
		if err != nil {
			return err
		}
		if ok {
			s.publishExpired(ctx, []Ref{{ID: ord.ID, Code: ord.Code, TableNumber: ord.TableNumber}})
			s.cacheStatus(ctx, ord.ID, StatusExpired)
		}
	default:
		// outcome tidak dikenal: no-op toleran
	}
	return nil
}

// History: daftar order per meja+token. Sweep global dulu (seperti endpoint
// history aslinya) supaya tidak ada pending basi yang lolos filter.
func (s *Service) History(ctx context.Context, table int, token string, status Status) ([]Order, error) {
	now := s.now()
	swept, err := s.Store.SweepExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	s.publishExpired(ctx, swept)

	return s.Store.ListByCustomer(ctx, table, token, status, now)
}

// PaymentQR: hasil generate payload pembayaran untuk satu order pending.
type PaymentQR struct {
	OrderID   int64      `json:"order_id"`
	OrderCode string     `json:"order_code"`
	Amount    int64      `json:"amount"`
	QRString  string     `json:"qr_string"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreatePaymentQR bikin payload QR sederhana (pengganti gateway) dan
// menyimpannya di order. Hanya order pending yang belum lewat deadline.
func (s *Service) CreatePaymentQR(ctx context.Context, id int64) (PaymentQR, error) {
	ord, err := s.Get(ctx, id)
	if err != nil {
		return PaymentQR{}, err
	}
	switch ord.Status {
	case StatusPending:
	case StatusExpired:
		return PaymentQR{}, ErrOrderExpired
	default:
		return PaymentQR{}, ErrNotPending
	}

	payload := fmt.Sprintf("COBEK|ORDER=%s|TOTAL=%d", ord.Code, ord.Total)
	if err := s.Store.SetQRString(ctx, ord.ID, payload, s.now()); err != nil {
		return PaymentQR{}, err
	}
	return PaymentQR{
		OrderID:   ord.ID,
		OrderCode: ord.Code,
		Amount:    ord.Total,
		QRString:  payload,
		ExpiresAt: ord.ExpiresAt,
	}, nil
}

func (s *Service) publishExpired(ctx context.Context, refs []Ref) {
	for _, ref := range refs {
		s.publish(ctx, EventOrderExpired, TopicOrderExpired, ref.Code, OrderExpiredPayload{
			OrderID: ref.ID, OrderCode: ref.Code, TableNumber: ref.TableNumber,
		})
		s.cacheStatus(ctx, ref.ID, StatusExpired)
	}
}

func (s *Service) publish(ctx context.Context, eventType, topic, orderCode string, payload any) {
	if s.Producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		CorrelationID: orderCode,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Producer.Publish(topic, PartitionKey(orderCode), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) cacheStatus(ctx context.Context, id int64, status Status) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	val := fmt.Sprintf(`{"status":%q,"updated_at":%q}`, status, s.now().Format(time.RFC3339))
	_ = s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}
