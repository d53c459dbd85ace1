package menu

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("menu not found")

// DB: subset *pgxpool.Pool yang dipakai repo katalog (read-only; katalog
// tidak pernah dimutasi oleh backend ini).
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ DB DB }

// ListActive: kategori aktif urut sort, masing-masing berisi menu aktif
// urut nama — bentuk yang sama dengan response GET /api/menus.
func (r *Repo) ListActive(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, is_active, sort FROM categories
		WHERE is_active ORDER BY sort`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := make([]Category, 0)
	idx := make(map[int64]int)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.Sort); err != nil {
			return nil, err
		}
		c.Menus = make([]Menu, 0)
		idx[c.ID] = len(cats)
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := r.DB.Query(ctx, `
		SELECT id, category_id, name, description, price, photo_path, is_active, created_at, updated_at
		FROM menus WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()

	for mrows.Next() {
		var m Menu
		if err := mrows.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.PhotoPath, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if i, ok := idx[m.CategoryID]; ok {
			cats[i].Menus = append(cats[i].Menus, m)
		}
	}
	return cats, mrows.Err()
}

func (r *Repo) GetByID(ctx context.Context, id int64) (Menu, error) {
	var m Menu
	err := r.DB.QueryRow(ctx, `
		SELECT id, category_id, name, description, price, photo_path, is_active, created_at, updated_at
		FROM menus WHERE id=$1`, id).
		Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.PhotoPath, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Menu{}, ErrNotFound
		}
		return Menu{}, err
	}
	return m, nil
}
