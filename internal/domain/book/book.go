package book

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Book.status is the single source of truth for borrowability.
// A book with an open request must never be "available".
const (
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
	StatusDeleted     = "deleted"
)

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("book not found")

// the book exists but cannot take a new borrow request right now
var ErrNotAvailable = errors.New("book is not available")

// admin toggle asked for on a soft-deleted book
var ErrDeleted = errors.New("book is deleted")

// with pointers if optional, it will be nil
type ListBooksFilter struct {
	Category           *string
	Query              *string
	IncludeUnavailable bool
	Limit              int
}

type CreateBookRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	Author      string `json:"author" binding:"required,min=1,max=120"`
	Category    string `json:"category" binding:"omitempty,max=80"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	CoverURL    string `json:"coverUrl" binding:"omitempty,url"`
}

// a full update payload; status is never editable through this path,
// it only moves via workflow transitions.
type UpdateBookRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	Author      string `json:"author" binding:"required,min=1,max=120"`
	Category    string `json:"category" binding:"omitempty,max=80"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	CoverURL    string `json:"coverUrl" binding:"omitempty,url"`
}

// A factory to build a Book from the incoming DTO. New books start available.
func NewFromCreateRequest(req CreateBookRequest) Book {
	now := time.Now().UTC()
	return Book{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Description: req.Description,
		Status:      StatusAvailable,
		CoverURL:    req.CoverURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
