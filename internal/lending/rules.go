package lending

import (
	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/domain/request"
)

// Pure transition rules for the lending workflow. The engine re-checks
// these inside a transaction while holding the relevant row lock, so the
// answer cannot go stale between check and write.

// CanRequest says whether a new borrow request may be opened on a book
// in the given status.
func CanRequest(bookStatus string) error {
	switch bookStatus {
	case book.StatusAvailable:
		return nil
	case book.StatusDeleted:
		// deleted books are invisible to members
		return book.ErrNotFound
	default:
		return book.ErrNotAvailable
	}
}

// CanApprove: only pending requests can be approved.
func CanApprove(requestStatus string) error {
	if requestStatus != request.StatusPending {
		return request.ErrNotPending
	}
	return nil
}

// CanReject: only pending requests can be rejected.
func CanReject(requestStatus string) error {
	if requestStatus != request.StatusPending {
		return request.ErrNotPending
	}
	return nil
}

// CanReturn: only approved requests can be marked returned.
func CanReturn(requestStatus string) error {
	if requestStatus != request.StatusApproved {
		return request.ErrNotApproved
	}
	return nil
}

// ToggleTarget resolves the admin availability override. The override is
// independent of open requests but never applies to deleted books.
func ToggleTarget(bookStatus string) (string, error) {
	switch bookStatus {
	case book.StatusAvailable:
		return book.StatusUnavailable, nil
	case book.StatusUnavailable:
		return book.StatusAvailable, nil
	case book.StatusDeleted:
		return "", book.ErrDeleted
	default:
		return "", book.ErrNotFound
	}
}
