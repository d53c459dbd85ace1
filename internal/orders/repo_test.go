package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, &Repo{DB: mock}
}

func orderRow(id int64, status Status, expiresAt *time.Time) *pgxmock.Rows {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return pgxmock.NewRows([]string{
		"id", "order_code", "table_number", "customer_token", "customer_name",
		"customer_phone", "customer_email", "customer_note", "subtotal", "other_fees",
		"total", "status", "paid_at", "expires_at", "payment_ref", "qr_string",
		"created_at", "updated_at",
	}).AddRow(
		id, "ABCDEF1234", 3, "tok1", "Budi",
		"0812000111", "budi@example.com", nil, int64(55000), int64(5500),
		int64(60500), status, nil, expiresAt, nil, nil,
		now, now,
	)
}

func TestCreateOrder(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name, price FROM menus`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price"}).
			AddRow(int64(1), "Ayam Goreng / Bakar Cobek", int64(20000)).
			AddRow(int64(2), "Lele Goreng / Bakar Cobek", int64(15000)))
	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery(`INSERT INTO purchase_histories`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO purchase_histories`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectCommit()

	ord, err := repo.CreateOrder(context.Background(), CreateOrderInput{
		TableNumber:   3,
		CustomerToken: "tok1",
		CustomerName:  "Budi",
		CustomerPhone: "0812000111",
		CustomerEmail: "budi@example.com",
		Items:         []ItemInput{{MenuID: 1, Qty: 2}, {MenuID: 2, Qty: 1}},
	}, 10, 20*time.Minute, now)
	if err != nil {
		t.Fatalf("createOrder: %v", err)
	}

	if ord.ID != 42 || ord.Status != StatusPending {
		t.Errorf("order = id %d status %s, want id 42 pending", ord.ID, ord.Status)
	}
	if ord.Subtotal != 55000 || ord.OtherFees != 5500 || ord.Total != 60500 {
		t.Errorf("quote = %d/%d/%d, want 55000/5500/60500", ord.Subtotal, ord.OtherFees, ord.Total)
	}
	if len(ord.Code) != codeLength {
		t.Errorf("code %q, want %d chars", ord.Code, codeLength)
	}
	if ord.ExpiresAt == nil || !ord.ExpiresAt.Equal(now.Add(20*time.Minute)) {
		t.Errorf("expires_at = %v, want now+20m", ord.ExpiresAt)
	}
	if len(ord.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(ord.Items))
	}
	if ord.Items[0].MenuName != "Ayam Goreng / Bakar Cobek" || ord.Items[0].LineTotal != 40000 {
		t.Errorf("snapshot item[0] = %+v", ord.Items[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateOrder_UnknownItemRollsBack(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	// cuma satu dari dua menu yang ketemu: seluruh transaksi harus batal,
	// tidak ada INSERT yang jalan
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name, price FROM menus`).
		WithArgs([]int64{1, 99}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price"}).
			AddRow(int64(1), "Ayam Goreng / Bakar Cobek", int64(20000)))
	mock.ExpectRollback()

	_, err := repo.CreateOrder(context.Background(), CreateOrderInput{
		TableNumber:   3,
		CustomerToken: "tok1",
		Items:         []ItemInput{{MenuID: 1, Qty: 1}, {MenuID: 99, Qty: 1}},
	}, 10, 20*time.Minute, now)
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err = %v, want ErrUnknownItem", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID_LazyExpires(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	mock.ExpectQuery(`FROM orders WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(orderRow(7, StatusPending, &past))
	mock.ExpectExec(`UPDATE orders SET status=`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`FROM purchase_histories`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "menu_id", "menu_name", "unit_price", "qty", "line_total"}))

	ord, expiredNow, err := repo.GetByID(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("getByID: %v", err)
	}
	if ord.Status != StatusExpired || !expiredNow {
		t.Errorf("status=%s expiredNow=%v, want expired/true", ord.Status, expiredNow)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID_AlreadyExpiredIsNoOp(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	// sudah expired: tidak ada UPDATE kedua (idempotent)
	mock.ExpectQuery(`FROM orders WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(orderRow(7, StatusExpired, &past))
	mock.ExpectQuery(`FROM purchase_histories`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "menu_id", "menu_name", "unit_price", "qty", "line_total"}))

	ord, expiredNow, err := repo.GetByID(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("getByID: %v", err)
	}
	if ord.Status != StatusExpired || expiredNow {
		t.Errorf("status=%s expiredNow=%v, want expired/false", ord.Status, expiredNow)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCancel_LostRace(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE orders SET status=`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.Cancel(context.Background(), 7, time.Now().UTC())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ok {
		t.Error("cancel must report false when the CAS update hit no row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkAllPaid(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE orders SET status=`).
		WithArgs(StatusPaid, now, 3, "tok1", StatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_code", "table_number"}).
			AddRow(int64(7), "ABCDEF1234", 3).
			AddRow(int64(8), "ABCDEF5678", 3))

	refs, err := repo.MarkAllPaid(context.Background(), 3, "tok1", now)
	if err != nil {
		t.Fatalf("markAllPaid: %v", err)
	}
	if len(refs) != 2 || refs[0].Code != "ABCDEF1234" || refs[1].Code != "ABCDEF5678" {
		t.Errorf("refs = %+v, want both orders", refs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE orders SET status=`).
		WithArgs(StatusExpired, now, StatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_code", "table_number"}).
			AddRow(int64(5), "OLDORDER01", 2))

	refs, err := repo.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("sweepExpired: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != 5 {
		t.Errorf("refs = %+v, want the one stale order", refs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
