package tenants

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile/internal/masterdata/shared"
	"github.com/stockpile-erp/stockpile/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error)
	Get(ctx context.Context, id int64) (Business, error)
	Create(ctx context.Context, business Business) (Business, error)
	Update(ctx context.Context, id int64, business Business) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM businesses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, name, currency, is_active, created_at, updated_at FROM businesses` + where + ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Currency, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Business, error) {
	query := `SELECT id, name, currency, is_active, created_at, updated_at FROM businesses WHERE id = $1`
	var b Business
	err := r.db.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Currency, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, httpx.ErrNotFound
		}
		return Business{}, err
	}
	return b, nil
}

func (r *repository) Create(ctx context.Context, business Business) (Business, error) {
	query := `INSERT INTO businesses (name, currency, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, business.Name, business.Currency, business.IsActive, now, now).Scan(&business.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Business{}, httpx.ErrDuplicate
		}
		return Business{}, err
	}
	business.CreatedAt = now
	business.UpdatedAt = now
	return business, nil
}

func (r *repository) Update(ctx context.Context, id int64, business Business) error {
	query := `UPDATE businesses SET name = $1, currency = $2, is_active = $3, updated_at = $4 WHERE id = $5`
	tag, err := r.db.Exec(ctx, query, business.Name, business.Currency, business.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
