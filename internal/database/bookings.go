package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"batard/internal/booking"
	"batard/internal/models"
)

// CreateBooking persists a booking atomically. The capacity check runs inside
// the same transaction as the insert; with _txlock=immediate every creation
// serializes on the sqlite write lock, so the committed quantities read here
// cannot be invalidated by a concurrent create.
//
// Returns *booking.CapacityError when any item does not fit, and
// booking.ErrDuplicateBookingNumber on a booking-number collision.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.checkCapacityTx(ctx, tx, b); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (booking_number, first_name, last_name, phone, email, total_price, status, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		b.BookingNumber,
		b.Customer.FirstName, b.Customer.LastName, b.Customer.Phone, b.Customer.Email,
		b.TotalPrice, string(b.Status), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return booking.ErrDuplicateBookingNumber
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}

	for i, p := range b.Pickups {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO booking_pickups (booking_id, pickup_index, category_id, category_name, date, time_slot, order_notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, p.CategoryID, p.CategoryName, p.Date, p.TimeSlot, p.OrderNotes,
		); err != nil {
			return fmt.Errorf("insert pickup %d: %w", i, err)
		}
	}

	for i, it := range b.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO booking_items (booking_id, item_index, product_id, name, photo, quantity, price, subtotal_price, pickup_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, it.ProductID, it.Name, it.Photo, it.Quantity, it.Price, it.SubtotalPrice, it.PickupIndex,
		); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// checkCapacityTx verifies every (product, date) demand of b against the
// product's effective cap minus quantities already committed for that date.
// Cancelled bookings release their quantities; items are attributed to the
// date of the pickup their pickup_index points at.
func (db *DB) checkCapacityTx(ctx context.Context, tx *sql.Tx, b *models.Booking) error {
	type demandKey struct {
		productID int64
		date      string
	}

	demanded := make(map[demandKey]int64)
	var order []demandKey
	for _, it := range b.Items {
		if it.PickupIndex < 0 || it.PickupIndex >= len(b.Pickups) {
			return fmt.Errorf("item %d references pickup %d of %d", it.ProductID, it.PickupIndex, len(b.Pickups))
		}
		k := demandKey{it.ProductID, b.Pickups[it.PickupIndex].Date}
		if _, seen := demanded[k]; !seen {
			order = append(order, k)
		}
		demanded[k] += it.Quantity
	}

	var shortfalls []booking.CapacityShortfall
	for _, k := range order {
		var name string
		var stock, daily sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT name, stock, daily_capacity FROM products WHERE id = ?`, k.productID,
		).Scan(&name, &stock, &daily)
		if errors.Is(err, sql.ErrNoRows) {
			return &booking.ReferenceError{Kind: "product", IDs: []int64{k.productID}}
		}
		if err != nil {
			return fmt.Errorf("load product %d: %w", k.productID, err)
		}

		p := models.Product{}
		if stock.Valid {
			p.Stock = &stock.Int64
		}
		if daily.Valid {
			p.DailyCapacity = &daily.Int64
		}
		cap, bounded := p.EffectiveCap()
		if !bounded {
			continue
		}

		booked, err := bookedQuantityTx(ctx, tx, k.productID, k.date)
		if err != nil {
			return err
		}

		remaining := cap - booked
		if remaining < 0 {
			remaining = 0
		}
		if demanded[demandKey{k.productID, k.date}] > remaining {
			shortfalls = append(shortfalls, booking.CapacityShortfall{
				ProductID: k.productID,
				Name:      name,
				Date:      k.date,
				Requested: demanded[demandKey{k.productID, k.date}],
				Remaining: remaining,
			})
		}
	}

	if len(shortfalls) > 0 {
		return &booking.CapacityError{Shortfalls: shortfalls}
	}
	return nil
}

func bookedQuantityTx(ctx context.Context, tx *sql.Tx, productID int64, date string) (int64, error) {
	var total sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT SUM(bi.quantity)
		FROM booking_items bi
		JOIN booking_pickups bp ON bp.booking_id = bi.booking_id AND bp.pickup_index = bi.pickup_index
		JOIN bookings b ON b.id = bi.booking_id
		WHERE bi.product_id = ? AND bp.date = ? AND b.status != 'cancelled'`,
		productID, date,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum booked quantity: %w", err)
	}
	return total.Int64, nil
}

// BookedQuantities returns the committed quantity per product for one date,
// excluding cancelled bookings. Used by the advisory pre-check; the
// authoritative check runs inside CreateBooking.
func (db *DB) BookedQuantities(ctx context.Context, date string) (map[int64]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT bi.product_id, SUM(bi.quantity)
		FROM booking_items bi
		JOIN booking_pickups bp ON bp.booking_id = bi.booking_id AND bp.pickup_index = bi.pickup_index
		JOIN bookings b ON b.id = bi.booking_id
		WHERE bp.date = ? AND b.status != 'cancelled'
		GROUP BY bi.product_id`, date)
	if err != nil {
		return nil, fmt.Errorf("query booked quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// GetBookingByID returns a booking with pickups and items loaded.
func (db *DB) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	return db.getBooking(ctx, `WHERE id = ?`, id)
}

// GetBookingByNumber returns a booking looked up by its public number.
func (db *DB) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	return db.getBooking(ctx, `WHERE booking_number = ?`, number)
}

func (db *DB) getBooking(ctx context.Context, where string, arg any) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, booking_number, first_name, last_name, phone, email, total_price, status, archived, archived_at, created_at, updated_at
		FROM bookings `+where, arg)

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadBookingDetails(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings returns bookings newest first. A nil archived filter returns
// everything; otherwise only the matching archive state.
func (db *DB) ListBookings(ctx context.Context, archived *bool) ([]models.Booking, error) {
	query := `
		SELECT id, booking_number, first_name, last_name, phone, email, total_price, status, archived, archived_at, created_at, updated_at
		FROM bookings`
	var args []any
	if archived != nil {
		query += ` WHERE archived = ?`
		args = append(args, *archived)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bookings {
		if err := db.loadBookingDetails(ctx, &bookings[i]); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

func (db *DB) loadBookingDetails(ctx context.Context, b *models.Booking) error {
	rows, err := db.QueryContext(ctx, `
		SELECT category_id, category_name, date, time_slot, order_notes
		FROM booking_pickups WHERE booking_id = ? ORDER BY pickup_index`, b.ID)
	if err != nil {
		return fmt.Errorf("query pickups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Pickup
		if err := rows.Scan(&p.CategoryID, &p.CategoryName, &p.Date, &p.TimeSlot, &p.OrderNotes); err != nil {
			return err
		}
		b.Pickups = append(b.Pickups, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemRows, err := db.QueryContext(ctx, `
		SELECT product_id, name, photo, quantity, price, subtotal_price, pickup_index
		FROM booking_items WHERE booking_id = ? ORDER BY item_index`, b.ID)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it models.BookingItem
		if err := itemRows.Scan(&it.ProductID, &it.Name, &it.Photo, &it.Quantity, &it.Price, &it.SubtotalPrice, &it.PickupIndex); err != nil {
			return err
		}
		b.Items = append(b.Items, it)
	}
	return itemRows.Err()
}

// UpdateBookingStatus rewrites status and the archive pair in one statement.
// The caller (the booking service) decides the archive coupling.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status models.Status, archived bool, archivedAt *time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, archived = ?, archived_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(status), archived, nullableTime(archivedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// SetBookingArchived toggles only the archive pair.
func (db *DB) SetBookingArchived(ctx context.Context, id int64, archived bool, archivedAt *time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET archived = ?, archived_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		archived, nullableTime(archivedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update booking archived: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// DeleteBooking removes a booking; pickups and items cascade.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func scanBooking(r rowScanner) (models.Booking, error) {
	var b models.Booking
	var status string
	var archivedAt sql.NullTime
	err := r.Scan(
		&b.ID, &b.BookingNumber,
		&b.Customer.FirstName, &b.Customer.LastName, &b.Customer.Phone, &b.Customer.Email,
		&b.TotalPrice, &status, &b.Archived, &archivedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}
	b.Status = models.Status(status)
	if archivedAt.Valid {
		t := archivedAt.Time
		b.ArchivedAt = &t
	}
	return b, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
