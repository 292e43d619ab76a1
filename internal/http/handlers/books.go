package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mgathogo/lendhub/internal/config"
	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/utils"
)

const zeroUUID = "00000000-0000-0000-0000-000000000000"

type CatalogStore interface {
	Create(ctx context.Context, req book.CreateBookRequest) (book.Book, error)
	GetByID(ctx context.Context, id string) (book.Book, error)
	Update(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error)
	ListCursor(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error)
	Count(ctx context.Context, filter book.ListBooksFilter) (int, error)
}

// the status-changing book operations live on the lending engine
type BookWorkflow interface {
	SoftDelete(ctx context.Context, bookID string) error
	ToggleAvailability(ctx context.Context, bookID string) (book.Book, error)
}

type ListingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
	Invalidate(ctx context.Context)
}

type BooksHandler struct {
	repo     CatalogStore
	workflow BookWorkflow
	cache    ListingCache
}

func NewBooksHandler(repo CatalogStore, workflow BookWorkflow, cache ListingCache) *BooksHandler {
	return &BooksHandler{
		repo:     repo,
		workflow: workflow,
		cache:    cache,
	}
}

func (h *BooksHandler) CreateBook(ctx *gin.Context) {
	var req book.CreateBookRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	b, err := h.repo.Create(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not create book")
		return
	}

	h.invalidate(cctx)

	ctx.JSON(http.StatusCreated, b)
}

func (h *BooksHandler) ListBooks(ctx *gin.Context) {
	filter, afterCreatedAt, afterID, ok := parseListQuery(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	// the raw query string is the cache key; the cache layer namespaces
	// it by catalog version
	cacheKey := ctx.Request.URL.RawQuery

	if h.cache != nil {
		if payload, hit := h.cache.Get(cctx, cacheKey); hit {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", payload)
			return
		}
	}

	books, nextCursor, hasMore, err := h.repo.ListCursor(cctx, filter, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list books")
		return
	}

	total, err := h.repo.Count(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list books")
		return
	}

	body := gin.H{
		"items":      books,
		"count":      len(books),
		"total":      total,
		"hasMore":    hasMore,
		"nextCursor": nextCursor,
	}

	payload, err := json.Marshal(body)

	if err != nil {
		RespondInternal(ctx, "Could not list books")
		return
	}

	if h.cache != nil {
		h.cache.Set(cctx, cacheKey, payload)
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *BooksHandler) GetBookByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "book id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	b, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not fetch book")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, b)
}

func (h *BooksHandler) UpdateBook(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "book id must be a valid UUID", nil)
		return
	}

	var req book.UpdateBookRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	b, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not update book")
		return
	}

	h.invalidate(cctx)

	ctx.JSON(http.StatusOK, b)
}

// DeleteBook soft-deletes: the record stays for the denormalized
// references, the listings stop showing it.
func (h *BooksHandler) DeleteBook(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "book id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	err := h.workflow.SoftDelete(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not delete book")
		return
	}

	h.invalidate(cctx)

	ctx.Status(http.StatusNoContent)
}

// ToggleAvailability is the admin override, independent of open requests.
func (h *BooksHandler) ToggleAvailability(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "book id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	b, err := h.workflow.ToggleAvailability(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, book.ErrNotFound):
			RespondNotFound(ctx, "Book not found")
		case errors.Is(err, book.ErrDeleted):
			RespondConflict(ctx, "book_deleted", "Deleted books cannot be toggled.")
		default:
			RespondInternal(ctx, "Could not toggle availability")
		}
		return
	}

	h.invalidate(cctx)

	ctx.JSON(http.StatusOK, b)
}

func (h *BooksHandler) invalidate(ctx context.Context) {
	if h.cache != nil {
		h.cache.Invalidate(ctx)
	}
}

func parseListQuery(ctx *gin.Context) (filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string, ok bool) {
	// first page starts at epoch + zero UUID
	afterCreatedAt = time.Unix(0, 0).UTC()
	afterID = zeroUUID

	if cursor := ctx.Query("cursor"); cursor != "" {
		c, err := utils.DecodeBookCursor(cursor)

		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return filter, afterCreatedAt, afterID, false
		}

		afterCreatedAt = c.CreatedAt
		afterID = c.ID
	}

	filter.Limit = 20

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
			return filter, afterCreatedAt, afterID, false
		}

		filter.Limit = n
	}

	if category := ctx.Query("category"); category != "" {
		filter.Category = &category
	}

	if q := ctx.Query("q"); q != "" {
		filter.Query = &q
	}

	filter.IncludeUnavailable = ctx.Query("includeUnavailable") == "true"

	return filter, afterCreatedAt, afterID, true
}
