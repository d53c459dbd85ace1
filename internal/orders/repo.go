package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB adalah subset *pgxpool.Pool yang dipakai repo (pgxmock juga memenuhi
// interface ini, jadi repo bisa dites tanpa postgres).
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ DB DB }

// Ref: identitas ringkas order untuk publish event setelah update massal.
type Ref struct {
	ID          int64
	Code        string
	TableNumber int
}

const orderColumns = `id, order_code, table_number, customer_token, customer_name,
customer_phone, customer_email, customer_note, subtotal, other_fees, total,
status, paid_at, expires_at, payment_ref, qr_string, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Code, &o.TableNumber, &o.CustomerToken, &o.CustomerName,
		&o.CustomerPhone, &o.CustomerEmail, &o.CustomerNote, &o.Subtotal, &o.OtherFees,
		&o.Total, &o.Status, &o.PaidAt, &o.ExpiresAt, &o.PaymentRef, &o.QRString,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrder: resolve harga dari tabel menus di dalam transaksi (jangan
// percaya harga dari client), hitung quote, lalu simpan order + seluruh
// snapshot item all-or-nothing. Collision kode order ditangani unique index
// + retry dengan kode baru.
func (r *Repo) CreateOrder(ctx context.Context, in CreateOrderInput, feeRatePct int, ttl time.Duration, now time.Time) (Order, error) {
	for attempt := 0; attempt < 3; attempt++ {
		ord, err := r.createOrderOnce(ctx, in, feeRatePct, ttl, now, NewCode())
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return Order{}, err
		}
		return ord, nil
	}
	return Order{}, errors.New("order code collision persisted after retries")
}

func (r *Repo) createOrderOnce(ctx context.Context, in CreateOrderInput, feeRatePct int, ttl time.Duration, now time.Time, code string) (Order, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.MenuID)
	}
	rows, err := tx.Query(ctx, `SELECT id, name, price FROM menus WHERE is_active AND id = ANY($1)`, ids)
	if err != nil {
		return Order{}, err
	}
	prices := make(map[int64]int64, len(ids))
	names := make(map[int64]string, len(ids))
	for rows.Next() {
		var (
			id    int64
			name  string
			price int64
		)
		if err := rows.Scan(&id, &name, &price); err != nil {
			rows.Close()
			return Order{}, err
		}
		prices[id] = price
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return Order{}, err
	}

	quote, err := ComputeQuote(in.Items, prices, feeRatePct)
	if err != nil {
		return Order{}, err
	}

	expires := now.Add(ttl)
	ord := Order{
		Code:          code,
		TableNumber:   in.TableNumber,
		CustomerToken: in.CustomerToken,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CustomerEmail: in.CustomerEmail,
		CustomerNote:  in.CustomerNote,
		Subtotal:      quote.Subtotal,
		OtherFees:     quote.OtherFees,
		Total:         quote.Total,
		Status:        StatusPending,
		ExpiresAt:     &expires,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_code, table_number, customer_token, customer_name,
			customer_phone, customer_email, customer_note, subtotal, other_fees, total,
			status, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
		RETURNING id`,
		ord.Code, ord.TableNumber, ord.CustomerToken, ord.CustomerName, ord.CustomerPhone,
		ord.CustomerEmail, ord.CustomerNote, ord.Subtotal, ord.OtherFees, ord.Total,
		ord.Status, expires, now).Scan(&ord.ID)
	if err != nil {
		return Order{}, err
	}

	for _, it := range in.Items {
		item := Item{
			OrderID:   ord.ID,
			MenuID:    it.MenuID,
			MenuName:  names[it.MenuID],
			UnitPrice: prices[it.MenuID],
			Qty:       it.Qty,
			LineTotal: prices[it.MenuID] * int64(it.Qty),
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_histories (order_id, menu_id, menu_name, unit_price, qty, line_total, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
			RETURNING id`,
			item.OrderID, item.MenuID, item.MenuName, item.UnitPrice, item.Qty, item.LineTotal, now).Scan(&item.ID)
		if err != nil {
			return Order{}, err
		}
		ord.Items = append(ord.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return ord, nil
}

// GetByID membaca satu order + items. Kalau masih pending tapi deadline
// sudah lewat, status di-flip ke expired dulu (lazy expire) sebelum
// dikembalikan; expiredNow=true kalau flip terjadi di pembacaan ini.
func (r *Repo) GetByID(ctx context.Context, id int64, now time.Time) (Order, bool, error) {
	ord, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, false, ErrNotFound
		}
		return Order{}, false, err
	}

	expiredNow := false
	if ord.Status == StatusPending && ord.ExpiresAt != nil && now.After(*ord.ExpiresAt) {
		ok, err := r.Expire(ctx, ord.ID, now)
		if err != nil {
			return Order{}, false, err
		}
		if ok {
			ord.Status = StatusExpired
			ord.UpdatedAt = now
			expiredNow = true
		} else {
			// kalah race dengan transisi lain; baca ulang status final
			if err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, ord.ID).Scan(&ord.Status); err != nil {
				return Order{}, false, err
			}
		}
	}

	items, err := r.loadItems(ctx, []int64{ord.ID})
	if err != nil {
		return Order{}, false, err
	}
	ord.Items = items[ord.ID]
	return ord, expiredNow, nil
}

func (r *Repo) GetByCode(ctx context.Context, code string) (Order, error) {
	ord, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return ord, nil
}

// Semua transisi di bawah compare-and-set: cuma jalan kalau status masih
// pending, jadi dua request konkuren tidak bisa sama-sama menang.

func (r *Repo) MarkPaid(ctx context.Context, id int64, ref *string, now time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, paid_at=$3, payment_ref=COALESCE($4, payment_ref), updated_at=$3
		WHERE id=$1 AND status=$5`,
		id, StatusPaid, now, ref, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) Expire(ctx context.Context, id int64, now time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=$3
		WHERE id=$1 AND status=$4`,
		id, StatusExpired, now, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) Cancel(ctx context.Context, id int64, now time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=$3
		WHERE id=$1 AND status=$4`,
		id, StatusCancelled, now, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// SweepExpired: batch sweep seluruh pending yang sudah lewat deadline.
// Idempotent; order yang sudah terminal tidak tersentuh.
func (r *Repo) SweepExpired(ctx context.Context, now time.Time) ([]Ref, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE orders SET status=$1, updated_at=$2
		WHERE status=$3 AND expires_at IS NOT NULL AND expires_at < $2
		RETURNING id, order_code, table_number`,
		StatusExpired, now, StatusPending)
	if err != nil {
		return nil, err
	}
	return collectRefs(rows)
}

// SweepExpiredFor: sweep yang discope ke satu meja+token, dipakai sebelum
// bulk mark-paid supaya pending basi tidak ikut terbayar.
func (r *Repo) SweepExpiredFor(ctx context.Context, table int, token string, now time.Time) ([]Ref, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE orders SET status=$1, updated_at=$2
		WHERE status=$3 AND table_number=$4 AND customer_token=$5
		  AND expires_at IS NOT NULL AND expires_at < $2
		RETURNING id, order_code, table_number`,
		StatusExpired, now, StatusPending, table, token)
	if err != nil {
		return nil, err
	}
	return collectRefs(rows)
}

// MarkAllPaid: semua pending milik meja+token jadi paid sekaligus (aksi
// manual staff di kasir).
func (r *Repo) MarkAllPaid(ctx context.Context, table int, token string, now time.Time) ([]Ref, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE orders SET status=$1, paid_at=$2, updated_at=$2
		WHERE table_number=$3 AND customer_token=$4 AND status=$5
		RETURNING id, order_code, table_number`,
		StatusPaid, now, table, token, StatusPending)
	if err != nil {
		return nil, err
	}
	return collectRefs(rows)
}

// ListByCustomer: histori per meja+token. status=paid diurutkan paid_at
// terbaru; status=pending hanya yang belum lewat deadline, created_at
// terbaru dulu.
func (r *Repo) ListByCustomer(ctx context.Context, table int, token string, status Status, now time.Time) ([]Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch status {
	case StatusPaid:
		rows, err = r.DB.Query(ctx, `
			SELECT `+orderColumns+` FROM orders
			WHERE table_number=$1 AND customer_token=$2 AND status=$3
			ORDER BY paid_at DESC`,
			table, token, StatusPaid)
	case StatusPending:
		rows, err = r.DB.Query(ctx, `
			SELECT `+orderColumns+` FROM orders
			WHERE table_number=$1 AND customer_token=$2 AND status=$3
			  AND expires_at IS NOT NULL AND expires_at > $4
			ORDER BY created_at DESC`,
			table, token, StatusPending, now)
	default:
		return nil, fmt.Errorf("unsupported history status: %s", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	idx := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		idx[ord.ID] = len(out)
		ids = append(ids, ord.ID)
		out = append(out, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, its := range items {
		out[idx[id]].Items = its
	}
	return out, nil
}

func (r *Repo) SetQRString(ctx context.Context, id int64, payload string, now time.Time) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET qr_string=$2, updated_at=$3 WHERE id=$1`, id, payload, now)
	return err
}

func (r *Repo) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, menu_id, menu_name, unit_price, qty, line_total
		FROM purchase_histories WHERE order_id = ANY($1) ORDER BY id`,
		orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Item)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuID, &it.MenuName, &it.UnitPrice, &it.Qty, &it.LineTotal); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func collectRefs(rows pgx.Rows) ([]Ref, error) {
	defer rows.Close()
	var out []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.TableNumber); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
