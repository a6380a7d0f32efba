package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-admission-api/pkg/database"
)

// Store bundles every repository bound to one connection or transaction. Method names
// are unique across the embedded repositories so all of them are promoted.
type Store struct {
	*UserRepository
	*CourseRepository
	*BatchRepository
	*ScheduleRepository
	*EnrollmentRepository
	*WaitlistRepository
	*NotificationRepository
	*AuditRepository
}

// NewStore binds all repositories to db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewStore(db sqlx.ExtContext) *Store {
	return &Store{
		UserRepository:         NewUserRepository(db),
		CourseRepository:       NewCourseRepository(db),
		BatchRepository:        NewBatchRepository(db),
		ScheduleRepository:     NewScheduleRepository(db),
		EnrollmentRepository:   NewEnrollmentRepository(db),
		WaitlistRepository:     NewWaitlistRepository(db),
		NotificationRepository: NewNotificationRepository(db),
		AuditRepository:        NewAuditRepository(db),
	}
}

// TxObserver receives the duration and outcome of each transaction.
type TxObserver interface {
	ObserveTransaction(label string, duration time.Duration, err error)
}

// Transactor runs units of work against a transaction-scoped Store.
type Transactor struct {
	db          *sqlx.DB
	lockTimeout time.Duration
	observer    TxObserver
}

// NewTransactor constructs a Transactor. lockTimeout bounds row lock waits; zero disables it.
func NewTransactor(db *sqlx.DB, lockTimeout time.Duration, observer TxObserver) *Transactor {
	return &Transactor{db: db, lockTimeout: lockTimeout, observer: observer}
}

// WithinTx runs fn in a READ COMMITTED transaction. Returning an error rolls back.
func (t *Transactor) WithinTx(ctx context.Context, label string, fn func(*Store) error) error {
	start := time.Now()
	err := database.RunInTx(ctx, t.db, database.TxOptions{
		Isolation:   sql.LevelReadCommitted,
		LockTimeout: t.lockTimeout,
	}, func(tx *sqlx.Tx) error {
		return fn(NewStore(tx))
	})
	if t.observer != nil {
		t.observer.ObserveTransaction(label, time.Since(start), err)
	}
	return err
}
