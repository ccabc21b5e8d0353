package theater

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orflow/orflow/internal/platform/db"
)

type theaterRepoPG struct{ pool *pgxpool.Pool }

func NewTheaterRepoPG(pool *pgxpool.Pool) TheaterRepository {
	return &theaterRepoPG{pool: pool}
}

const theaterCols = `id, name, type, is_active, capabilities, operational_hours, created_at, updated_at`

func scanTheater(row pgx.Row) (*Theater, error) {
	var t Theater
	err := row.Scan(&t.ID, &t.Name, &t.Type, &t.IsActive, &t.Capabilities,
		&t.OperationalHours, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, db.AsNotFound(err)
	}
	return &t, nil
}

func (r *theaterRepoPG) Create(ctx context.Context, t *Theater) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO theater (id, name, type, is_active, capabilities, operational_hours, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.Name, t.Type, t.IsActive, t.Capabilities, t.OperationalHours, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *theaterRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Theater, error) {
	return scanTheater(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+theaterCols+` FROM theater WHERE id = $1`, id))
}

// GetByIDLocked takes a FOR UPDATE lock on the theater row. Callers must run
// inside a transaction or the lock is released immediately.
func (r *theaterRepoPG) GetByIDLocked(ctx context.Context, id uuid.UUID) (*Theater, error) {
	return scanTheater(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+theaterCols+` FROM theater WHERE id = $1 FOR UPDATE`, id))
}

func (r *theaterRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Theater, int, error) {
	where := ""
	if activeOnly {
		where = " WHERE is_active"
	}
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM theater`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+theaterCols+` FROM theater`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var theaters []*Theater
	for rows.Next() {
		t, err := scanTheater(rows)
		if err != nil {
			return nil, 0, err
		}
		theaters = append(theaters, t)
	}
	return theaters, total, rows.Err()
}

func (r *theaterRepoPG) Update(ctx context.Context, t *Theater) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE theater SET name=$2, type=$3, is_active=$4, capabilities=$5,
			operational_hours=$6, updated_at=$7
		WHERE id = $1`,
		t.ID, t.Name, t.Type, t.IsActive, t.Capabilities, t.OperationalHours, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepoPG{pool: pool}
}

const bookingCols = `id, theater_id, case_id, status, start_time, end_time, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.TheaterID, &b.CaseID, &b.Status,
		&b.StartTime, &b.EndTime, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, db.AsNotFound(err)
	}
	return &b, nil
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO theater_booking (id, theater_id, case_id, status, start_time, end_time, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.TheaterID, b.CaseID, b.Status, b.StartTime, b.EndTime, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM theater_booking WHERE id = $1`, id))
}

func (r *bookingRepoPG) ActiveForTheater(ctx context.Context, theaterID uuid.UUID) ([]*Booking, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+bookingCols+` FROM theater_booking
		WHERE theater_id = $1 AND status <> $2
		ORDER BY start_time`, theaterID, BookingCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *bookingRepoPG) ActiveForCase(ctx context.Context, caseID uuid.UUID) (*Booking, error) {
	return scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+bookingCols+` FROM theater_booking
		WHERE case_id = $1 AND status <> $2`, caseID, BookingCancelled))
}

func (r *bookingRepoPG) ListForTheater(ctx context.Context, theaterID uuid.UUID) ([]*Booking, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+bookingCols+` FROM theater_booking
		WHERE theater_id = $1 ORDER BY start_time`, theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *bookingRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE theater_booking SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func collectBookings(rows pgx.Rows) ([]*Booking, error) {
	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
