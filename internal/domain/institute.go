package domain

import "time"

// Institute is a node in the organizational hierarchy through which queries
// are routed. The parent chain from any leaf terminates at exactly one apex
// node (ParentID is nil only at the apex). The routing engine never writes
// institutes; they are managed by the administration module.
type Institute struct {
	ID        string
	Title     string
	RoleID    string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsApex reports whether the institute sits at the top of the hierarchy.
func (i *Institute) IsApex() bool {
	return i.ParentID == nil
}
