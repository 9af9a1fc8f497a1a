package identity

import (
	"fmt"
	"time"
)

// Role is the closed set of call-center roles. Anything read from the
// outside goes through ParseRole so the rest of the package can switch
// exhaustively.
type Role string

const (
	RoleCallAgent  Role = "CALL_AGENT"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCallAgent, RoleAdmin, RoleSuperAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// rank orders roles for hierarchy checks. Higher manages lower.
func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleCallAgent:
		return 1
	}
	return 0
}

// CanManage reports whether an actor with role r may create, modify or
// delete a user holding target. Peers never manage each other.
func (r Role) CanManage(target Role) bool {
	return r.rank() > target.rank()
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusSuspended:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       Status
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserFilter struct {
	Role   Role
	Status Status
	Search string
	Limit  int
	Offset int
}

// DashboardStats is the operational summary shown on the admin landing page.
type DashboardStats struct {
	ActiveAgents          int
	SuspendedAgents       int
	AppointmentsToday     int
	CancelledAppointments int
}
