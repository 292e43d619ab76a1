package request

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Request lifecycle. "rejected" and "returned" are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusReturned = "returned"
)

// Borrowing period is fixed. Both request creation and approval
// (re)stamp the due date.
const LoanPeriodDays = 15

type BookRequest struct {
	ID          string    `json:"id"`
	BookID      string    `json:"bookId"`
	BookTitle   string    `json:"bookTitle"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	RequestDate time.Time `json:"requestDate"`
	DueDate     time.Time `json:"dueDate"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("request not found")
var ErrNotPending = errors.New("request is not pending")
var ErrNotApproved = errors.New("request is not approved")

// A factory for a fresh pending request. Title and name are denormalized
// here so historical requests survive later edits and soft deletes.
func New(bookID, bookTitle, userID, userName string, now time.Time) BookRequest {
	now = now.UTC()
	return BookRequest{
		ID:          uuid.NewString(),
		BookID:      bookID,
		BookTitle:   bookTitle,
		UserID:      userID,
		UserName:    userName,
		RequestDate: now,
		DueDate:     DueDateFrom(now),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func DueDateFrom(t time.Time) time.Time {
	return t.UTC().AddDate(0, 0, LoanPeriodDays)
}

// Open means the request still ties the book down.
func IsOpen(status string) bool {
	return status == StatusPending || status == StatusApproved
}

func IsTerminal(status string) bool {
	return status == StatusRejected || status == StatusReturned
}

// Overdue is derived at read time, never stored.
func IsOverdue(r BookRequest, now time.Time) bool {
	return r.Status == StatusApproved && now.After(r.DueDate)
}
