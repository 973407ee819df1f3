package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/offerboard/backend/internal/store/migrations"
)

// gooseUpContext is swapped in tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// PostgresStore is the relational backend. Arrays are stored as TEXT[].
type PostgresStore struct {
	db     *sql.DB
	users  *postgresUsers
	offers *postgresOffers
}

// OpenPostgres opens and pings a PostgreSQL connection pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		users:  &postgresUsers{db: db},
		offers: &postgresOffers{db: db},
	}
}

// RunMigrations applies the embedded schema.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Users() UserRepository   { return s.users }
func (s *PostgresStore) Offers() OfferRepository { return s.offers }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, push_message_token, mail_auth_code, last_code_request, created_at, updated_at`

func scanUser(row rowScanner) (*User, error) {
	var u User
	var push sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &push, &u.MailAuthCode, &u.LastCodeRequest, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.PushMessageToken = push.String
	u.LastCodeRequest = u.LastCodeRequest.UTC()
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

type postgresUsers struct {
	db *sql.DB
}

func (r *postgresUsers) List(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *postgresUsers) Get(ctx context.Context, id string) (*User, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *postgresUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *postgresUsers) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	now := Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	user.LastCodeRequest = Truncate(user.LastCodeRequest)

	var push sql.NullString
	if user.PushMessageToken != "" {
		push = sql.NullString{String: user.PushMessageToken, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, push, user.MailAuthCode, user.LastCodeRequest, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func (r *postgresUsers) Update(ctx context.Context, id, email string, pushMessageToken *string) (*User, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	var push sql.NullString
	if pushMessageToken != nil {
		push = sql.NullString{String: *pushMessageToken, Valid: true}
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET email = $2, push_message_token = COALESCE($3, push_message_token), updated_at = $4
		 WHERE id = $1 RETURNING `+userColumns,
		id, email, push, Now(),
	)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUsers) Delete(ctx context.Context, id string) (*User, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return scanUser(r.db.QueryRowContext(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id))
}

func (r *postgresUsers) RotateMailAuthCode(ctx context.Context, id string, expectCode int, expectAt time.Time, newCode int, at time.Time) (bool, error) {
	if !ValidID(id) {
		return false, ErrInvalidID
	}
	at = Truncate(at)
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mail_auth_code = $4, last_code_request = $5, updated_at = $5
		 WHERE id = $1 AND mail_auth_code = $2 AND last_code_request = $3`,
		id, expectCode, Truncate(expectAt), newCode, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const offerColumns = `id, user_mail, accepting_user, subject, topic, year, end_date, is_accepted, created_at, updated_at`

func scanOffer(row rowScanner) (*Offer, error) {
	var o Offer
	var accepting, topic []string
	err := row.Scan(&o.ID, &o.UserMail, pq.Array(&accepting), &o.Subject, pq.Array(&topic),
		&o.Year, &o.EndDate, &o.IsAccepted, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.AcceptingUser = accepting
	o.Topic = topic
	o.EndDate = o.EndDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	normalizeOffer(&o)
	return &o, nil
}

type postgresOffers struct {
	db *sql.DB
}

func (r *postgresOffers) List(ctx context.Context) ([]*Offer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := []*Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (r *postgresOffers) Get(ctx context.Context, id string) (*Offer, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return scanOffer(r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
}

func (r *postgresOffers) Create(ctx context.Context, offer *Offer) error {
	normalizeOffer(offer)
	if offer.ID == "" {
		offer.ID = NewID()
	}
	now := Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO offers (`+offerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		offer.ID, offer.UserMail, pq.Array(offer.AcceptingUser), offer.Subject, pq.Array(offer.Topic),
		offer.Year, offer.EndDate, offer.IsAccepted, offer.CreatedAt, offer.UpdatedAt,
	)
	return err
}

func (r *postgresOffers) Replace(ctx context.Context, offer *Offer) (*Offer, error) {
	if !ValidID(offer.ID) {
		return nil, ErrInvalidID
	}
	normalizeOffer(offer)
	return scanOffer(r.db.QueryRowContext(ctx,
		`UPDATE offers SET user_mail = $2, accepting_user = $3, subject = $4, topic = $5,
		 year = $6, end_date = $7, is_accepted = $8, updated_at = $9
		 WHERE id = $1 RETURNING `+offerColumns,
		offer.ID, offer.UserMail, pq.Array(offer.AcceptingUser), offer.Subject, pq.Array(offer.Topic),
		offer.Year, offer.EndDate, offer.IsAccepted, Now(),
	))
}

func (r *postgresOffers) Delete(ctx context.Context, id string) (*Offer, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return scanOffer(r.db.QueryRowContext(ctx, `DELETE FROM offers WHERE id = $1 RETURNING `+offerColumns, id))
}
