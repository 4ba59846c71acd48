package mysql

// -----------------------------------------------------------------------------
// CATALOG READS
// -----------------------------------------------------------------------------

const getRoomSQL = `
SELECT
  r.id,
  r.room_type_id,
  r.number,
  t.monthly_price,
  t.daily_price
FROM rooms r
JOIN room_types t ON t.id = r.room_type_id
WHERE r.id = ?
`

// Batch resolve; the IN list is expanded per call. Pivot rows are fetched
// in a second query keyed by service id.
const getServicesPrefix = `
SELECT id, name, monthly_price, daily_price, is_free, is_limited, total_units
FROM services
WHERE id IN `

const getServicePivotPrefix = `
SELECT service_id, room_type_id
FROM room_type_services
WHERE service_id IN `

const listRoomTypeServicesSQL = `
SELECT s.id, s.name, s.monthly_price, s.daily_price, s.is_free, s.is_limited, s.total_units
FROM services s
JOIN room_type_services rts ON rts.service_id = s.id
WHERE rts.room_type_id = ?
ORDER BY s.id
`

// -----------------------------------------------------------------------------
// AVAILABILITY
// -----------------------------------------------------------------------------

// Active bookings are bookings whose parent invoice is not cancelled.
// Overlap of inclusive ranges [a,b] and [c,d]: NOT (b < c OR d < a), so
// touching endpoints conflict.
const countActiveOverlappingSQL = `
SELECT COUNT(*)
FROM bookings b
JOIN invoices i ON i.id = b.invoice_id
WHERE b.bookable_type = ?
  AND b.bookable_id = ?
  AND i.status <> 'cancelled'
  AND NOT (i.end_date < ? OR i.start_date > ?)
`

// Same predicate with row locks: run inside the booking transaction so a
// concurrent attempt for the same entity serializes on the index range.
const countActiveOverlappingForUpdateSQL = countActiveOverlappingSQL + `FOR UPDATE`

const activeRangesSQL = `
SELECT i.start_date, i.end_date
FROM bookings b
JOIN invoices i ON i.id = b.invoice_id
WHERE b.bookable_type = ?
  AND b.bookable_id = ?
  AND i.status <> 'cancelled'
  AND i.end_date >= ?
ORDER BY i.start_date, i.end_date
`

// -----------------------------------------------------------------------------
// INVOICES & BOOKINGS
// -----------------------------------------------------------------------------

const insertInvoiceSQL = `
INSERT INTO invoices
  (user_id, start_date, end_date, count_month, count_day, total_cost, status, payment_id)
VALUES
  (?, ?, ?, ?, ?, ?, 'pending', ?)
`

const insertBookingSQL = `
INSERT INTO bookings
  (invoice_id, bookable_type, bookable_id, original_monthly_price, original_daily_price, booking_cost)
VALUES
  (?, ?, ?, ?, ?, ?)
`

const getInvoiceByPaymentSQL = `
SELECT id, user_id, start_date, end_date, count_month, count_day, total_cost, status, payment_id, created_at, updated_at
FROM invoices
WHERE payment_id = ?
`

// Guarded transition: settling an already settled invoice is a zero-row
// update, which the repo maps to ErrInvalidState.
const settleInvoiceSQL = `
UPDATE invoices
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = 'pending'
`

const listPendingOlderThanSQL = `
SELECT id, user_id, start_date, end_date, count_month, count_day, total_cost, status, payment_id, created_at, updated_at
FROM invoices
WHERE status = 'pending' AND created_at < ?
ORDER BY created_at
LIMIT ?
`
