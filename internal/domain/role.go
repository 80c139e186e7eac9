package domain

import "time"

// RoleName identifies a tier in the institute hierarchy.
type RoleName string

const (
	RoleLeaf     RoleName = "LEAF"
	RoleRegional RoleName = "REGIONAL"
	RoleApex     RoleName = "APEX"
	RoleAdmin    RoleName = "ADMIN"
)

// Role maps a role identifier to its hierarchy tier. Read-only lookup data.
type Role struct {
	ID        string
	Name      RoleName
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RaisesQueries reports whether institutes of this role submit queries upward.
func (n RoleName) RaisesQueries() bool {
	return n == RoleLeaf || n == RoleRegional
}
