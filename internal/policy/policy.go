package policy

import (
	"crypto/subtle"

	"github.com/mgathogo/lendhub/internal/domain/user"
)

// Policy holds the access-control decisions: which role may touch which
// resource, and the shared-secret admin enrollment gate. Route guards and
// handlers defer here instead of comparing role strings inline, so every
// rule lives in one place.
type Policy struct {
	adminCode []byte
}

func New(adminCode string) *Policy {
	return &Policy{adminCode: []byte(adminCode)}
}

// VerifyAdminCode is the admin enrollment gate: anyone holding the
// configured secret can self-enroll as admin. Compared in constant time.
func (p *Policy) VerifyAdminCode(candidate string) bool {
	if len(p.adminCode) == 0 {
		// unconfigured gate admits nobody
		return false
	}
	return subtle.ConstantTimeCompare(p.adminCode, []byte(candidate)) == 1
}

// CanManageCatalog: only admins add, edit, delete or toggle books.
func (p *Policy) CanManageCatalog(role string) bool {
	return role == user.RoleAdmin
}

// CanDecideRequest: approve, reject and mark-returned are admin actions.
func (p *Policy) CanDecideRequest(role string) bool {
	return role == user.RoleAdmin
}

// CanViewRequest: admins see every request, members only their own.
func (p *Policy) CanViewRequest(role, actorID, ownerID string) bool {
	if role == user.RoleAdmin {
		return true
	}
	return actorID != "" && actorID == ownerID
}

// CanUploadImages: cover uploads ride along with catalog management.
func (p *Policy) CanUploadImages(role string) bool {
	return role == user.RoleAdmin
}
