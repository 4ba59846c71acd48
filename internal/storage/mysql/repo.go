package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

const dateLayout = "2006-01-02"

func dateArg(t time.Time) string { return t.Format(dateLayout) }
func decArg(d decimal.Decimal) string {
	// full precision on the wire; the column scale does the final rounding
	return d.String()
}

func scanDec(b []byte) decimal.Decimal {
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func placeholders(n int) string {
	return "(?" + strings.Repeat(",?", n-1) + ")"
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---------------------------------------------------------------------------
// CatalogRepository
// ---------------------------------------------------------------------------

func (r *Repo) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	row := r.db.QueryRowContext(ctx, getRoomSQL, id)

	var rm domain.Room
	var monthly, daily []byte
	if err := row.Scan(&rm.ID, &rm.RoomTypeID, &rm.Number, &monthly, &daily); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
		}
		return domain.Room{}, err
	}
	rm.MonthlyPrice = scanDec(monthly)
	rm.DailyPrice = scanDec(daily)
	return rm, nil
}

func (r *Repo) GetServices(ctx context.Context, ids []int64) ([]domain.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, getServicesPrefix+placeholders(len(ids)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Service, len(ids))
	for rows.Next() {
		var s domain.Service
		var monthly, daily []byte
		if err := rows.Scan(&s.ID, &s.Name, &monthly, &daily, &s.IsFree, &s.IsLimited, &s.TotalUnits); err != nil {
			return nil, err
		}
		s.MonthlyPrice = scanDec(monthly)
		s.DailyPrice = scanDec(daily)
		byID[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if byID[id] == nil {
			return nil, fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
		}
	}

	if err := r.loadServicePivots(ctx, byID, args); err != nil {
		return nil, err
	}

	// preserve request order, dedup repeated ids
	out := make([]domain.Service, 0, len(byID))
	seen := make(map[int64]bool, len(byID))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, *byID[id])
	}
	return out, nil
}

func (r *Repo) loadServicePivots(ctx context.Context, byID map[int64]*domain.Service, args []any) error {
	rows, err := r.db.QueryContext(ctx, getServicePivotPrefix+placeholders(len(args)), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var serviceID, roomTypeID int64
		if err := rows.Scan(&serviceID, &roomTypeID); err != nil {
			return err
		}
		if s := byID[serviceID]; s != nil {
			s.RoomTypeIDs = append(s.RoomTypeIDs, roomTypeID)
		}
	}
	return rows.Err()
}

func (r *Repo) ListRoomTypeServices(ctx context.Context, roomTypeID int64) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, listRoomTypeServicesSQL, roomTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		var s domain.Service
		var monthly, daily []byte
		if err := rows.Scan(&s.ID, &s.Name, &monthly, &daily, &s.IsFree, &s.IsLimited, &s.TotalUnits); err != nil {
			return nil, err
		}
		s.MonthlyPrice = scanDec(monthly)
		s.DailyPrice = scanDec(daily)
		s.RoomTypeIDs = []int64{roomTypeID}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// BookingRepository
// ---------------------------------------------------------------------------

func (r *Repo) CountActiveOverlapping(ctx context.Context, ref domain.BookableRef, rng domain.Range) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countActiveOverlappingSQL,
		string(ref.Type), ref.ID, dateArg(rng.Start), dateArg(rng.End)).Scan(&n)
	return n, err
}

func (r *Repo) ActiveRanges(ctx context.Context, ref domain.BookableRef) ([]domain.Range, error) {
	today := time.Now().UTC().Format(dateLayout)
	rows, err := r.db.QueryContext(ctx, activeRangesSQL, string(ref.Type), ref.ID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Range
	for rows.Next() {
		var rg domain.Range
		if err := rows.Scan(&rg.Start, &rg.End); err != nil {
			return nil, err
		}
		out = append(out, rg)
	}
	return out, rows.Err()
}

func (r *Repo) CreateInvoiceWithBookings(ctx context.Context, inv domain.Invoice, items []domain.Booking, guards []domain.AvailabilityGuard) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// Re-check availability with row locks inside the same transaction that
	// writes the rows; a concurrent attempt for the same entity blocks here
	// and then sees this invoice's bookings.
	rng := inv.Range()
	for _, g := range guards {
		var n int
		if err := tx.QueryRowContext(ctx, countActiveOverlappingForUpdateSQL,
			string(g.Ref.Type), g.Ref.ID, dateArg(rng.Start), dateArg(rng.End)).Scan(&n); err != nil {
			return 0, err
		}
		if n > g.MaxOverlapping {
			return 0, &domain.ConflictError{Ref: g.Ref, Name: g.Name}
		}
	}

	res, err := tx.ExecContext(ctx, insertInvoiceSQL,
		inv.UserID,
		dateArg(inv.StartDate),
		dateArg(inv.EndDate),
		inv.CountMonth,
		inv.CountDay,
		decArg(inv.TotalCost),
		inv.PaymentID,
	)
	if err != nil {
		return 0, err
	}
	invoiceID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, b := range items {
		if _, err := tx.ExecContext(ctx, insertBookingSQL,
			invoiceID,
			string(b.Bookable.Type),
			b.Bookable.ID,
			decArg(b.OriginalMonthlyPrice),
			decArg(b.OriginalDailyPrice),
			decArg(b.BookingCost),
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return invoiceID, nil
}

func (r *Repo) GetInvoiceByPaymentID(ctx context.Context, paymentID string) (domain.Invoice, error) {
	return r.scanInvoice(r.db.QueryRowContext(ctx, getInvoiceByPaymentSQL, paymentID))
}

type rowScanner interface{ Scan(dst ...any) error }

func (r *Repo) scanInvoice(row rowScanner) (domain.Invoice, error) {
	var inv domain.Invoice
	var total []byte
	var status string
	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.StartDate,
		&inv.EndDate,
		&inv.CountMonth,
		&inv.CountDay,
		&total,
		&status,
		&inv.PaymentID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invoice{}, domain.ErrNotFound
		}
		return domain.Invoice{}, err
	}
	inv.TotalCost = scanDec(total)
	inv.Status = domain.InvoiceStatus(status)
	return inv, nil
}

func (r *Repo) SettleInvoice(ctx context.Context, invoiceID int64, to domain.InvoiceStatus) error {
	if to != domain.InvoicePaid && to != domain.InvoiceCancelled {
		return fmt.Errorf("cannot settle invoice %d to %q", invoiceID, to)
	}
	res, err := r.db.ExecContext(ctx, settleInvoiceSQL, string(to), invoiceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (r *Repo) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]domain.Invoice, error) {
	cutoff := time.Now().UTC().Add(-age)
	rows, err := r.db.QueryContext(ctx, listPendingOlderThanSQL, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
