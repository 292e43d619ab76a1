package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/observability"
	"github.com/mgathogo/lendhub/internal/utils"
)

type BooksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

// constructor function

func NewBooksRepo(pool *pgxpool.Pool, prom *observability.Prom) *BooksRepo {
	return &BooksRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *BooksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *BooksRepo) Create(ctx context.Context, req book.CreateBookRequest) (book.Book, error) {
	b := book.NewFromCreateRequest(req)

	err := r.observe("books.create", func() error {
		_, execErr := r.pool.Exec(ctx,
			`INSERT INTO books (id, title, author, category, description, status, cover_url, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			b.ID, b.Title, b.Author, b.Category, b.Description, b.Status, b.CoverURL, b.CreatedAt, b.UpdatedAt)
		return execErr
	})

	if err != nil {
		return book.Book{}, err
	}

	return b, nil
}

// GetByID never returns soft-deleted books; to the caller they are gone.
func (r *BooksRepo) GetByID(ctx context.Context, id string) (book.Book, error) {
	var b book.Book

	err := r.observe("books.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, title, author, category, description, status, cover_url, created_at, updated_at
			FROM books
			WHERE id = $1 AND status <> $2`,
			id, book.StatusDeleted,
		).Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Description, &b.Status, &b.CoverURL, &b.CreatedAt, &b.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}

		return book.Book{}, err
	}

	return b, nil
}

// Update edits descriptive fields only; status moves through the
// lending engine.
func (r *BooksRepo) Update(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error) {
	var b book.Book

	err := r.observe("books.update", func() error {
		return r.pool.QueryRow(
			ctx,
			`UPDATE books
				SET title = $2,
						author = $3,
						category = $4,
						description = $5,
						cover_url = $6,
						updated_at = NOW()
			WHERE id = $1 AND status <> $7
			RETURNING id, title, author, category, description, status, cover_url, created_at, updated_at`,
			id,
			req.Title,
			req.Author,
			req.Category,
			req.Description,
			req.CoverURL,
			book.StatusDeleted,
		).Scan(
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
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}
		// if it is any other type of error
		return book.Book{}, err
	}

	return b, nil
}

// ListCursor pages the catalog by (created_at, id). Deleted books are
// excluded unconditionally; unavailable ones only when the filter says so.
func (r *BooksRepo) ListCursor(
	ctx context.Context,
	filter book.ListBooksFilter,
	afterCreatedAt time.Time,
	afterID string,
) (books []book.Book, nextCursor *string, hasMore bool, err error) {
	conds := []string{"status <> $1", "(created_at, id) > ($2, $3)"}
	args := []interface{}{book.StatusDeleted, afterCreatedAt, afterID}

	argsPosition := 4

	if !filter.IncludeUnavailable {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPosition))
		args = append(args, book.StatusAvailable)
		argsPosition++
	}

	if filter.Category != nil {
		conds = append(conds, fmt.Sprintf("category = $%d", argsPosition))
		args = append(args, *filter.Category)
		argsPosition++
	}

	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", argsPosition, argsPosition))
		args = append(args, "%"+*filter.Query+"%")
		argsPosition++
	}

	limit := filter.Limit

	if limit <= 0 {
		limit = 20
	}

	// fetch one extra row to know whether another page exists
	query := `SELECT id, title, author, category, description, status, cover_url, created_at, updated_at
		FROM books
		WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", argsPosition)

	args = append(args, limit+1)

	var rows pgx.Rows

	err = r.observe("books.list_cursor", func() error {
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, nil, false, err
	}

	defer rows.Close()

	books = make([]book.Book, 0, limit)

	for rows.Next() {
		var b book.Book

		scanErr := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Description, &b.Status, &b.CoverURL, &b.CreatedAt, &b.UpdatedAt)

		if scanErr != nil {
			return nil, nil, false, scanErr
		}

		books = append(books, b)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, false, err
	}

	if len(books) > limit {
		hasMore = true
		books = books[:limit]
	}

	if hasMore && len(books) > 0 {
		last := books[len(books)-1]

		cursor, encErr := utils.EncodeBookCursor(last.CreatedAt, last.ID)

		if encErr != nil {
			return nil, nil, false, encErr
		}

		nextCursor = &cursor
	}

	return books, nextCursor, hasMore, nil
}

// Count of visible catalog entries for the same filter.
func (r *BooksRepo) Count(ctx context.Context, filter book.ListBooksFilter) (int, error) {
	conds := []string{"status <> $1"}
	args := []interface{}{book.StatusDeleted}

	argsPosition := 2

	if !filter.IncludeUnavailable {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPosition))
		args = append(args, book.StatusAvailable)
		argsPosition++
	}

	if filter.Category != nil {
		conds = append(conds, fmt.Sprintf("category = $%d", argsPosition))
		args = append(args, *filter.Category)
		argsPosition++
	}

	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", argsPosition, argsPosition))
		args = append(args, "%"+*filter.Query+"%")
	}

	query := `SELECT COUNT(*) FROM books WHERE ` + strings.Join(conds, " AND ")

	var total int

	err := r.observe("books.count", func() error {
		return r.pool.QueryRow(ctx, query, args...).Scan(&total)
	})

	if err != nil {
		return 0, err
	}

	return total, nil
}
