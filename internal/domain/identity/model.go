// Package identity exposes staff profiles and role lookups. The diary
// scheduler uses it to resolve supervisors for escalation emails.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// ElevatedRoles are the roles that receive escalation mail.
var ElevatedRoles = []string{"supervisor", "admin", "rn_supervisor"}

// Profile is a staff member known to the system.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
