package session

import (
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
)

// Session is the authenticated state of one caller identity.
// There is at most one per caller; re-authentication overwrites it.
type Session struct {
	RoleProof  roleproof.RoleProof `json:"roleProof"`
	Expiration time.Time           `json:"expiration"`
}

// ValidAt reports whether the session is still usable at now (strictly before expiration).
func (s *Session) ValidAt(now time.Time) bool {
	return s != nil && now.Before(s.Expiration)
}
