package models

// RoleAdmin is the privileged role; only admins may read the audit trail.
const RoleAdmin = "admin"

// Actor is the authenticated principal performing an operation.
// Authentication happens upstream; the ledger trusts this identity as given
// and only records and checks it.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
