package lending

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/domain/request"
	"github.com/mgathogo/lendhub/internal/observability"
)

// Engine runs every workflow transition as a single transaction so a
// request and its book can never disagree. The book (or request) row is
// locked FOR UPDATE first; two concurrent callers serialize on that lock
// and the loser re-reads a status that fails the precondition.
type Engine struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEngine(pool *pgxpool.Pool, prom *observability.Prom) *Engine {
	return &Engine{
		pool: pool,
		prom: prom,
	}
}

func (e *Engine) observe(op string, fn func() error) error {
	if e.prom != nil {
		return e.prom.ObserveDB(op, fn)
	}
	return fn()
}

// CreateRequest opens a pending borrow request on an available book and
// flips the book to unavailable, in one transaction.
func (e *Engine) CreateRequest(ctx context.Context, bookID, userID, userName string) (req request.BookRequest, err error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	// lock the book row; this is what serializes two simultaneous
	// requests for the same book
	var title, status string

	err = e.observe("lending.create_request.lock_book", func() error {
		return tx.QueryRow(ctx, `
			SELECT title, status
			FROM books
			WHERE id = $1
			FOR UPDATE
		`, bookID).Scan(&title, &status)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = book.ErrNotFound
		}
		return
	}

	err = CanRequest(status)

	if err != nil {
		return
	}

	req = request.New(bookID, title, userID, userName, time.Now())

	err = e.observe("lending.create_request.insert", func() error {
		_, execErr := tx.Exec(ctx, `
			INSERT INTO book_requests (id, book_id, book_title, user_id, user_name, request_date, due_date, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, req.ID, req.BookID, req.BookTitle, req.UserID, req.UserName, req.RequestDate, req.DueDate, req.Status, req.CreatedAt, req.UpdatedAt)
		return execErr
	})

	if err != nil {
		return
	}

	err = e.observe("lending.create_request.flip_book", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE books
			SET status = $2, updated_at = NOW()
			WHERE id = $1
		`, bookID, book.StatusUnavailable)
		return execErr
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// Approve moves a pending request to approved and restamps the due date
// from approval time. The book stays unavailable; writing it again is
// idempotent and re-establishes the invariant even if an admin toggled
// the book in between.
func (e *Engine) Approve(ctx context.Context, requestID string) (request.BookRequest, error) {
	return e.decide(ctx, requestID, "lending.approve", func(current request.BookRequest) (string, *time.Time, string, error) {
		if err := CanApprove(current.Status); err != nil {
			return "", nil, "", err
		}
		due := request.DueDateFrom(time.Now())
		return request.StatusApproved, &due, book.StatusUnavailable, nil
	})
}

// Reject terminally closes a pending request and frees the book.
func (e *Engine) Reject(ctx context.Context, requestID string) (request.BookRequest, error) {
	return e.decide(ctx, requestID, "lending.reject", func(current request.BookRequest) (string, *time.Time, string, error) {
		if err := CanReject(current.Status); err != nil {
			return "", nil, "", err
		}
		return request.StatusRejected, nil, book.StatusAvailable, nil
	})
}

// MarkReturned terminally closes an approved request and frees the book.
func (e *Engine) MarkReturned(ctx context.Context, requestID string) (request.BookRequest, error) {
	return e.decide(ctx, requestID, "lending.return", func(current request.BookRequest) (string, *time.Time, string, error) {
		if err := CanReturn(current.Status); err != nil {
			return "", nil, "", err
		}
		return request.StatusReturned, nil, book.StatusAvailable, nil
	})
}

// decide is the shared admin-decision transaction: lock the request,
// run the rule, then write the request and its book together.
func (e *Engine) decide(
	ctx context.Context,
	requestID string,
	op string,
	ruleFn func(current request.BookRequest) (nextStatus string, newDue *time.Time, bookStatus string, err error),
) (req request.BookRequest, err error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = e.observe(op+".lock_request", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, book_id, book_title, user_id, user_name, request_date, due_date, status, created_at, updated_at
			FROM book_requests
			WHERE id = $1
			FOR UPDATE
		`, requestID).Scan(
			&req.ID,
			&req.BookID,
			&req.BookTitle,
			&req.UserID,
			&req.UserName,
			&req.RequestDate,
			&req.DueDate,
			&req.Status,
			&req.CreatedAt,
			&req.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = request.ErrNotFound
		}
		return
	}

	nextStatus, newDue, bookStatus, err := ruleFn(req)

	if err != nil {
		return
	}

	now := time.Now().UTC()

	if newDue != nil {
		req.DueDate = *newDue
	}

	err = e.observe(op+".update_request", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE book_requests
			SET status = $2, due_date = $3, updated_at = $4
			WHERE id = $1
		`, req.ID, nextStatus, req.DueDate, now)
		return execErr
	})

	if err != nil {
		return
	}

	// lock the book row too so a racing create-request sees the freed
	// status only after commit
	err = e.observe(op+".update_book", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE books
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status <> $3
		`, req.BookID, bookStatus, book.StatusDeleted)
		return execErr
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	req.Status = nextStatus
	req.UpdatedAt = now

	return
}

// SoftDelete marks a book deleted without removing the row, so the
// denormalized titles on old requests keep pointing at something real.
// Deleting an already-deleted book is a no-op.
func (e *Engine) SoftDelete(ctx context.Context, bookID string) (err error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var status string

	err = e.observe("lending.soft_delete.lock_book", func() error {
		return tx.QueryRow(ctx, `
			SELECT status FROM books WHERE id = $1 FOR UPDATE
		`, bookID).Scan(&status)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = book.ErrNotFound
		}
		return
	}

	if status == book.StatusDeleted {
		// idempotent from the caller's view
		return tx.Commit(ctx)
	}

	err = e.observe("lending.soft_delete.update", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE books
			SET status = $2, updated_at = NOW()
			WHERE id = $1
		`, bookID, book.StatusDeleted)
		return execErr
	})

	if err != nil {
		return
	}

	return tx.Commit(ctx)
}

// ToggleAvailability is the admin override between available and
// unavailable, independent of open requests.
func (e *Engine) ToggleAvailability(ctx context.Context, bookID string) (b book.Book, err error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = e.observe("lending.toggle.lock_book", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, title, author, category, description, status, cover_url, created_at, updated_at
			FROM books
			WHERE id = $1
			FOR UPDATE
		`, bookID).Scan(
			&b.ID,
			&b.Title,
			&b.Author,
			&b.Category,
			&b.Description,
			&b.Status,
			&b.CoverURL,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = book.ErrNotFound
		}
		return
	}

	next, err := ToggleTarget(b.Status)

	if err != nil {
		return
	}

	now := time.Now().UTC()

	err = e.observe("lending.toggle.update", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE books
			SET status = $2, updated_at = $3
			WHERE id = $1
		`, bookID, next, now)
		return execErr
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	b.Status = next
	b.UpdatedAt = now

	return
}
