package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Every
// quantity mutation goes through GetRecordForUpdate so concurrent writers
// serialise on the record row.
type TxRepository interface {
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	GetRecordForUpdate(ctx context.Context, tenantID, productID int64) (Record, error)
	UpdateQuantities(ctx context.Context, rec Record) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	InsertReservation(ctx context.Context, res Reservation) (int64, error)
	GetReservationForUpdate(ctx context.Context, id int64) (Reservation, error)
	MarkReservationReleased(ctx context.Context, id int64) error
	ReduceReservationsByRef(ctx context.Context, recordID int64, refID string, qty int64) error
}

type txRepo struct {
	tx pgx.Tx
}

const recordColumns = `id, tenant_id, product_id, quantity_on_hand, quantity_reserved, reorder_level, max_stock_level, location, avg_unit_cost, created_at, updated_at`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get fetches a record by id within the tenant scope.
func (r *Repository) Get(ctx context.Context, tenantID, id int64) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records WHERE tenant_id = $1 AND id = $2`
	return scanRecord(r.pool.QueryRow(ctx, query, tenantID, id))
}

// GetByProduct fetches the record tracking the given product.
func (r *Repository) GetByProduct(ctx context.Context, tenantID, productID int64) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records WHERE tenant_id = $1 AND product_id = $2`
	return scanRecord(r.pool.QueryRow(ctx, query, tenantID, productID))
}

// List returns records matching the filter plus the unpaginated total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}
	argCount := 1

	if filter.Location != "" {
		argCount++
		where += ` AND location = $` + strconv.Itoa(argCount)
		args = append(args, filter.Location)
	}
	if filter.LowStock {
		where += ` AND quantity_on_hand - quantity_reserved > 0 AND quantity_on_hand - quantity_reserved <= reorder_level`
	}
	if filter.OutOfStock {
		where += ` AND quantity_on_hand - quantity_reserved = 0`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM inventory_records` + where + ` ORDER BY product_id`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filter.Page - 1) * filter.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Update applies level and location changes to a record.
func (r *Repository) Update(ctx context.Context, tenantID, id int64, input UpdateRecordInput) (Record, error) {
	query := `UPDATE inventory_records SET updated_at = NOW()`
	args := []interface{}{}
	argCount := 0

	if input.ReorderLevel != nil {
		argCount++
		query += `, reorder_level = $` + strconv.Itoa(argCount)
		args = append(args, *input.ReorderLevel)
	}
	if input.MaxStockLevel != nil {
		argCount++
		query += `, max_stock_level = $` + strconv.Itoa(argCount)
		args = append(args, *input.MaxStockLevel)
	}
	if input.Location != nil {
		argCount++
		query += `, location = $` + strconv.Itoa(argCount)
		args = append(args, *input.Location)
	}

	query += ` WHERE tenant_id = $` + strconv.Itoa(argCount+1) + ` AND id = $` + strconv.Itoa(argCount+2) + ` RETURNING ` + recordColumns
	args = append(args, tenantID, id)

	return scanRecord(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a record and its reservations. Movements stay for the audit trail.
func (r *Repository) Delete(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_records WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListMovements returns the stock card for one record, newest first.
func (r *Repository) ListMovements(ctx context.Context, tenantID, recordID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT id, record_id, tenant_id, product_id, movement_type, qty, reason, unit_cost, balance_on_hand, balance_reserved, COALESCE(ref_id::text, ''), actor_id, note, posted_at
		FROM stock_movements WHERE tenant_id = $1 AND record_id = $2 ORDER BY posted_at DESC, id DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, tenantID, recordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.RecordID, &m.TenantID, &m.ProductID, &m.Type, &m.Qty, &m.Reason, &m.UnitCost, &m.BalanceOnHand, &m.BalanceReserved, &m.RefID, &m.ActorID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ValuationLines joins records with products for the valuation aggregate.
func (r *Repository) ValuationLines(ctx context.Context, tenantID int64) ([]ValuationLine, error) {
	query := `SELECT ir.product_id, COALESCE(p.name, ''), ir.quantity_on_hand, ir.avg_unit_cost
		FROM inventory_records ir
		LEFT JOIN products p ON p.id = ir.product_id
		WHERE ir.tenant_id = $1 ORDER BY ir.product_id`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ValuationLine
	for rows.Next() {
		var line ValuationLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.OnHand, &line.AvgUnitCost); err != nil {
			return nil, err
		}
		line.Value = float64(line.OnHand) * line.AvgUnitCost
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListExpiredReservations returns active reservations whose deadline passed.
func (r *Repository) ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, record_id, tenant_id, product_id, qty, COALESCE(ref_id::text, ''), expires_at, released, COALESCE(released_at, 'epoch'::timestamptz), created_at
		FROM stock_reservations
		WHERE released = FALSE AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at LIMIT $2`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.RecordID, &res.TenantID, &res.ProductID, &res.Qty, &res.RefID, &res.ExpiresAt, &res.Released, &res.ReleasedAt, &res.CreatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

func (t *txRepo) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	query := `INSERT INTO inventory_records (tenant_id, product_id, quantity_on_hand, quantity_reserved, reorder_level, max_stock_level, location, avg_unit_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING ` + recordColumns
	created, err := scanRecord(t.tx.QueryRow(ctx, query, rec.TenantID, rec.ProductID, rec.OnHand, rec.Reserved, rec.ReorderLevel, rec.MaxStockLevel, rec.Location, rec.AvgUnitCost))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicateRecord
		}
		return Record{}, err
	}
	return created, nil
}

func (t *txRepo) GetRecordForUpdate(ctx context.Context, tenantID, productID int64) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records WHERE tenant_id = $1 AND product_id = $2 FOR UPDATE`
	return scanRecord(t.tx.QueryRow(ctx, query, tenantID, productID))
}

func (t *txRepo) UpdateQuantities(ctx context.Context, rec Record) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory_records SET quantity_on_hand = $1, quantity_reserved = $2, avg_unit_cost = $3, updated_at = NOW() WHERE id = $4`,
		rec.OnHand, rec.Reserved, rec.AvgUnitCost, rec.ID)
	return err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	query := `INSERT INTO stock_movements (record_id, tenant_id, product_id, movement_type, qty, reason, unit_cost, balance_on_hand, balance_reserved, ref_id, actor_id, note, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid, $11, $12, $13) RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, m.RecordID, m.TenantID, m.ProductID, string(m.Type), m.Qty, string(m.Reason), m.UnitCost, m.BalanceOnHand, m.BalanceReserved, m.RefID, m.ActorID, m.Note, m.PostedAt).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReservation(ctx context.Context, res Reservation) (int64, error) {
	query := `INSERT INTO stock_reservations (record_id, tenant_id, product_id, qty, ref_id, expires_at, released, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, 'epoch'::timestamptz), FALSE, NOW()) RETURNING id`
	var id int64
	expires := res.ExpiresAt
	if expires.IsZero() {
		expires = time.Unix(0, 0).UTC()
	}
	err := t.tx.QueryRow(ctx, query, res.RecordID, res.TenantID, res.ProductID, res.Qty, res.RefID, expires).Scan(&id)
	return id, err
}

func (t *txRepo) GetReservationForUpdate(ctx context.Context, id int64) (Reservation, error) {
	query := `SELECT id, record_id, tenant_id, product_id, qty, COALESCE(ref_id::text, ''), COALESCE(expires_at, 'epoch'::timestamptz), released, COALESCE(released_at, 'epoch'::timestamptz), created_at
		FROM stock_reservations WHERE id = $1 FOR UPDATE`
	var res Reservation
	err := t.tx.QueryRow(ctx, query, id).Scan(&res.ID, &res.RecordID, &res.TenantID, &res.ProductID, &res.Qty, &res.RefID, &res.ExpiresAt, &res.Released, &res.ReleasedAt, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrRecordNotFound
		}
		return Reservation{}, err
	}
	if res.ExpiresAt.Unix() == 0 {
		res.ExpiresAt = time.Time{}
	}
	return res, nil
}

func (t *txRepo) MarkReservationReleased(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_reservations SET released = TRUE, released_at = NOW() WHERE id = $1`, id)
	return err
}

// ReduceReservationsByRef consumes qty units from the active reservations
// carrying the reference, oldest first. Rows drained to zero are marked
// released; a partially consumed row keeps its qty remainder and expiry.
func (t *txRepo) ReduceReservationsByRef(ctx context.Context, recordID int64, refID string, qty int64) error {
	if refID == "" || qty <= 0 {
		return nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id, qty FROM stock_reservations WHERE record_id = $1 AND ref_id = $2::uuid AND released = FALSE ORDER BY created_at, id FOR UPDATE`, recordID, refID)
	if err != nil {
		return err
	}
	type resRow struct {
		id  int64
		qty int64
	}
	var active []resRow
	for rows.Next() {
		var r resRow
		if err := rows.Scan(&r.id, &r.qty); err != nil {
			rows.Close()
			return err
		}
		active = append(active, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	remaining := qty
	for _, r := range active {
		if remaining <= 0 {
			break
		}
		if r.qty <= remaining {
			if _, err := t.tx.Exec(ctx, `UPDATE stock_reservations SET released = TRUE, released_at = NOW() WHERE id = $1`, r.id); err != nil {
				return err
			}
			remaining -= r.qty
			continue
		}
		if _, err := t.tx.Exec(ctx, `UPDATE stock_reservations SET qty = qty - $1 WHERE id = $2`, remaining, r.id); err != nil {
			return err
		}
		remaining = 0
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.ProductID, &rec.OnHand, &rec.Reserved, &rec.ReorderLevel, &rec.MaxStockLevel, &rec.Location, &rec.AvgUnitCost, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}
