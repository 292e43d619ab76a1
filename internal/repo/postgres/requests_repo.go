package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mgathogo/lendhub/internal/domain/request"
	"github.com/mgathogo/lendhub/internal/observability"
	"github.com/mgathogo/lendhub/internal/utils"
)

// RequestsRepo covers the read side of borrow requests. All writes go
// through the lending engine so the book row is always updated in the
// same transaction.
type RequestsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRequestsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RequestsRepo {
	return &RequestsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *RequestsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const requestColumns = `id, book_id, book_title, user_id, user_name, request_date, due_date, status, created_at, updated_at`

func scanRequest(row pgx.Row) (request.BookRequest, error) {
	var req request.BookRequest

	err := row.Scan(
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

	return req, err
}

func (r *RequestsRepo) GetByID(ctx context.Context, id string) (request.BookRequest, error) {
	var req request.BookRequest
	var err error

	obsErr := r.observe("requests.get_by_id", func() error {
		req, err = scanRequest(r.pool.QueryRow(ctx,
			`SELECT `+requestColumns+` FROM book_requests WHERE id = $1`, id))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return request.BookRequest{}, request.ErrNotFound
		}

		return request.BookRequest{}, obsErr
	}

	return req, nil
}

// ListCursor pages requests for the admin dashboard in insertion order,
// oldest first to match the ascending cursor tuple, with an optional
// status filter.
func (r *RequestsRepo) ListCursor(
	ctx context.Context,
	status *string,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (reqs []request.BookRequest, nextCursor *string, hasMore bool, err error) {
	conds := []string{"(created_at, id) > ($1, $2)"}
	args := []interface{}{afterCreatedAt, afterID}

	argsPosition := 3

	if status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPosition))
		args = append(args, *status)
		argsPosition++
	}

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + requestColumns + ` FROM book_requests WHERE ` +
		strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", argsPosition)

	args = append(args, limit+1)

	var rows pgx.Rows

	err = r.observe("requests.list_cursor", func() error {
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, nil, false, err
	}

	defer rows.Close()

	reqs = make([]request.BookRequest, 0, limit)

	for rows.Next() {
		req, scanErr := scanRequest(rows)

		if scanErr != nil {
			return nil, nil, false, scanErr
		}

		reqs = append(reqs, req)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, false, err
	}

	if len(reqs) > limit {
		hasMore = true
		reqs = reqs[:limit]
	}

	if hasMore && len(reqs) > 0 {
		last := reqs[len(reqs)-1]

		cursor, encErr := utils.EncodeRequestCursor(last.CreatedAt, last.ID)

		if encErr != nil {
			return nil, nil, false, encErr
		}

		nextCursor = &cursor
	}

	return reqs, nextCursor, hasMore, nil
}

// ListByUser returns a member's own requests, most recent first.
func (r *RequestsRepo) ListByUser(ctx context.Context, userID string) (reqs []request.BookRequest, err error) {
	var rows pgx.Rows

	err = r.observe("requests.list_by_user", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+requestColumns+`
			FROM book_requests
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC`,
			userID,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	reqs = make([]request.BookRequest, 0)

	for rows.Next() {
		req, scanErr := scanRequest(rows)

		if scanErr != nil {
			return nil, scanErr
		}

		reqs = append(reqs, req)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return reqs, nil
}

// OpenRequestForBook finds the open (pending or approved) request tied
// to a book, if any. Used by admin views to show why a book is held.
func (r *RequestsRepo) OpenRequestForBook(ctx context.Context, bookID string) (request.BookRequest, error) {
	var req request.BookRequest
	var err error

	obsErr := r.observe("requests.open_for_book", func() error {
		req, err = scanRequest(r.pool.QueryRow(ctx,
			`SELECT `+requestColumns+`
			FROM book_requests
			WHERE book_id = $1 AND status IN ($2, $3)
			ORDER BY created_at DESC
			LIMIT 1`,
			bookID, request.StatusPending, request.StatusApproved,
		))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return request.BookRequest{}, request.ErrNotFound
		}

		return request.BookRequest{}, obsErr
	}

	return req, nil
}
