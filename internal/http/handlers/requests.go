package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mgathogo/lendhub/internal/config"
	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/domain/request"
	"github.com/mgathogo/lendhub/internal/domain/user"
	"github.com/mgathogo/lendhub/internal/http/middlewares"
	"github.com/mgathogo/lendhub/internal/utils"
)

// LendingEngine is the workflow surface the handlers drive. The real
// implementation runs each call as one transaction.
type LendingEngine interface {
	CreateRequest(ctx context.Context, bookID, userID, userName string) (request.BookRequest, error)
	Approve(ctx context.Context, requestID string) (request.BookRequest, error)
	Reject(ctx context.Context, requestID string) (request.BookRequest, error)
	MarkReturned(ctx context.Context, requestID string) (request.BookRequest, error)
}

type RequestReader interface {
	GetByID(ctx context.Context, id string) (request.BookRequest, error)
	ListCursor(ctx context.Context, status *string, limit int, afterCreatedAt time.Time, afterID string) ([]request.BookRequest, *string, bool, error)
	ListByUser(ctx context.Context, userID string) ([]request.BookRequest, error)
	OpenRequestForBook(ctx context.Context, bookID string) (request.BookRequest, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// RequestPolicy decides who may see a given request record.
type RequestPolicy interface {
	CanViewRequest(role, actorID, ownerID string) bool
}

type RequestsHandler struct {
	engine LendingEngine
	reader RequestReader
	users  UserGetter
	cache  ListingCache
	pol    RequestPolicy
}

func NewRequestsHandler(engine LendingEngine, reader RequestReader, users UserGetter, cache ListingCache, pol RequestPolicy) *RequestsHandler {
	return &RequestsHandler{
		engine: engine,
		reader: reader,
		users:  users,
		cache:  cache,
		pol:    pol,
	}
}

// requestView adds the derived overdue flag to the stored record.
type requestView struct {
	request.BookRequest
	Overdue bool `json:"overdue"`
}

func viewOf(r request.BookRequest, now time.Time) requestView {
	return requestView{
		BookRequest: r,
		Overdue:     request.IsOverdue(r, now),
	}
}

func viewsOf(reqs []request.BookRequest) []requestView {
	now := time.Now().UTC()

	out := make([]requestView, 0, len(reqs))

	for _, r := range reqs {
		out = append(out, viewOf(r, now))
	}

	return out
}

// CreateRequest opens a borrow request on behalf of the logged-in member.
func (h *RequestsHandler) CreateRequest(ctx *gin.Context) {
	bookID := ctx.Param("id")

	if !utils.IsUUID(bookID) {
		RespondBadRequest(ctx, "book id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	// the requester's name is denormalized onto the request record
	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not create request")
		return
	}

	req, err := h.engine.CreateRequest(cctx, bookID, u.ID, u.Name)

	if err != nil {
		switch {
		case errors.Is(err, book.ErrNotFound):
			RespondNotFound(ctx, "Book not found")
		case errors.Is(err, book.ErrNotAvailable):
			RespondConflict(ctx, "book_unavailable", "This book is not available right now.")
		default:
			RespondInternal(ctx, "Could not create request")
		}
		return
	}

	// the book flipped to unavailable; cached listings are stale now
	if h.cache != nil {
		h.cache.Invalidate(cctx)
	}

	ctx.JSON(http.StatusCreated, viewOf(req, time.Now().UTC()))
}

// ListRequests is the admin dashboard feed.
func (h *RequestsHandler) ListRequests(ctx *gin.Context) {
	afterCreatedAt := time.Unix(0, 0).UTC()
	afterID := zeroUUID

	if cursor := ctx.Query("cursor"); cursor != "" {
		c, err := utils.DecodeRequestCursor(cursor)

		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}

		afterCreatedAt = c.CreatedAt
		afterID = c.ID
	}

	var status *string

	if raw := ctx.Query("status"); raw != "" {
		switch raw {
		case request.StatusPending, request.StatusApproved, request.StatusRejected, request.StatusReturned:
			status = &raw
		default:
			RespondBadRequest(ctx, "unknown status filter", nil)
			return
		}
	}

	limit := 50

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
			return
		}

		limit = n
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	reqs, nextCursor, hasMore, err := h.reader.ListCursor(cctx, status, limit, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list requests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":      viewsOf(reqs),
		"count":      len(reqs),
		"hasMore":    hasMore,
		"nextCursor": nextCursor,
	})
}

// MyRequests lists the member's own borrow history.
func (h *RequestsHandler) MyRequests(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	reqs, err := h.reader.ListByUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not list requests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": viewsOf(reqs),
		"count": len(reqs),
	})
}

// GetRequestByID shows one request: admins see any record, members only
// their own. The ownership check is the policy's, not the handler's.
func (h *RequestsHandler) GetRequestByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "request id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	req, err := h.reader.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			RespondNotFound(ctx, "Request not found")
			return
		}
		RespondInternal(ctx, "Could not fetch request")
		return
	}

	if !h.pol.CanViewRequest(role, userID, req.UserID) {
		RespondForbidden(ctx, "You do not have permission to view this request")
		return
	}

	ctx.JSON(http.StatusOK, viewOf(req, time.Now().UTC()))
}

// OpenRequestForBook tells an admin why an unavailable book is held:
// the pending or approved request currently tying it down, if any.
func (h *RequestsHandler) OpenRequestForBook(ctx *gin.Context) {
	bookID := ctx.Param("id")

	if !utils.IsUUID(bookID) {
		RespondBadRequest(ctx, "book id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	req, err := h.reader.OpenRequestForBook(cctx, bookID)

	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			RespondNotFound(ctx, "No open request for this book")
			return
		}
		RespondInternal(ctx, "Could not fetch request")
		return
	}

	ctx.JSON(http.StatusOK, viewOf(req, time.Now().UTC()))
}

func (h *RequestsHandler) Approve(ctx *gin.Context) {
	h.decide(ctx, h.engine.Approve)
}

func (h *RequestsHandler) Reject(ctx *gin.Context) {
	h.decide(ctx, h.engine.Reject)
}

func (h *RequestsHandler) MarkReturned(ctx *gin.Context) {
	h.decide(ctx, h.engine.MarkReturned)
}

func (h *RequestsHandler) decide(ctx *gin.Context, action func(context.Context, string) (request.BookRequest, error)) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "request id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	req, err := action(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, request.ErrNotFound):
			RespondNotFound(ctx, "Request not found")
		case errors.Is(err, request.ErrNotPending):
			RespondConflict(ctx, "not_pending", "Only pending requests can be decided.")
		case errors.Is(err, request.ErrNotApproved):
			RespondConflict(ctx, "not_approved", "Only approved requests can be returned.")
		default:
			RespondInternal(ctx, "Could not update request")
		}
		return
	}

	// every decision moves the book's status as well
	if h.cache != nil {
		h.cache.Invalidate(cctx)
	}

	ctx.JSON(http.StatusOK, viewOf(req, time.Now().UTC()))
}
