package lending_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/domain/request"
	"github.com/mgathogo/lendhub/internal/lending"
)

func TestCanRequest(t *testing.T) {
	tests := []struct {
		name       string
		bookStatus string
		wantErr    error
	}{
		{
			name:       "available_book_ok",
			bookStatus: book.StatusAvailable,
			wantErr:    nil,
		},
		{
			name:       "unavailable_book_rejected",
			bookStatus: book.StatusUnavailable,
			wantErr:    book.ErrNotAvailable,
		},
		{
			// deleted books must look like they never existed
			name:       "deleted_book_not_found",
			bookStatus: book.StatusDeleted,
			wantErr:    book.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lending.CanRequest(tt.bookStatus)

			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Fatalf("CanRequest(%q) = %v, want %v", tt.bookStatus, err, tt.wantErr)
			}
		})
	}
}

func TestAdminDecisionRules(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		status  string
		wantErr error
	}{
		{"approve_pending_ok", lending.CanApprove, request.StatusPending, nil},
		{"approve_approved_fails", lending.CanApprove, request.StatusApproved, request.ErrNotPending},
		{"approve_rejected_fails", lending.CanApprove, request.StatusRejected, request.ErrNotPending},
		{"approve_returned_fails", lending.CanApprove, request.StatusReturned, request.ErrNotPending},

		{"reject_pending_ok", lending.CanReject, request.StatusPending, nil},
		{"reject_approved_fails", lending.CanReject, request.StatusApproved, request.ErrNotPending},

		{"return_approved_ok", lending.CanReturn, request.StatusApproved, nil},
		{"return_pending_fails", lending.CanReturn, request.StatusPending, request.ErrNotApproved},
		{"return_returned_fails", lending.CanReturn, request.StatusReturned, request.ErrNotApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.status)

			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestToggleTarget(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		want    string
		wantErr error
	}{
		{"available_flips_to_unavailable", book.StatusAvailable, book.StatusUnavailable, nil},
		{"unavailable_flips_to_available", book.StatusUnavailable, book.StatusAvailable, nil},
		{"deleted_cannot_toggle", book.StatusDeleted, "", book.ErrDeleted},
		{"garbage_status_not_found", "checked-out", "", book.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lending.ToggleTarget(tt.status)

			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			if got != tt.want {
				t.Fatalf("target = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDueDateFrom(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	due := request.DueDateFrom(start)

	want := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)

	if !due.Equal(want) {
		t.Fatalf("due = %v, want %v", due, want)
	}
}

func TestOpenAndTerminal(t *testing.T) {
	if !request.IsOpen(request.StatusPending) || !request.IsOpen(request.StatusApproved) {
		t.Fatal("pending and approved must be open")
	}

	if request.IsOpen(request.StatusRejected) || request.IsOpen(request.StatusReturned) {
		t.Fatal("terminal statuses must not be open")
	}

	if !request.IsTerminal(request.StatusRejected) || !request.IsTerminal(request.StatusReturned) {
		t.Fatal("rejected and returned must be terminal")
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Now().UTC()

	approved := request.BookRequest{Status: request.StatusApproved, DueDate: now.Add(-time.Hour)}
	if !request.IsOverdue(approved, now) {
		t.Fatal("approved request past due date should be overdue")
	}

	// only approved requests can be overdue; a stale pending one is not a loan
	pending := request.BookRequest{Status: request.StatusPending, DueDate: now.Add(-time.Hour)}
	if request.IsOverdue(pending, now) {
		t.Fatal("pending request should never be overdue")
	}

	future := request.BookRequest{Status: request.StatusApproved, DueDate: now.Add(time.Hour)}
	if request.IsOverdue(future, now) {
		t.Fatal("request due in the future should not be overdue")
	}
}
