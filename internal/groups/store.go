// Package groups reads group membership from the shared store. The
// scheduling core only consumes it for display data (patient name around
// the start gate) and as the recipient list for notices; membership
// management itself lives elsewhere.
package groups

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Role identifies a member's function inside a care group.
type Role string

const (
	RolePatient         Role = "patient"
	RoleCaregiver       Role = "caregiver"
	RoleDoctor          Role = "doctor"
	RolePriorityContact Role = "priority_contact"
)

// Member is one user inside a group.
type Member struct {
	UserID  uuid.UUID `json:"user_id"`
	GroupID uuid.UUID `json:"group_id"`
	Role    Role      `json:"role"`
	Name    string    `json:"name"`
	Email   string    `json:"email,omitempty"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads group members.
type Store struct {
	db DB
}

// NewStore creates a group membership store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("groups: db required")
	}
	return &Store{db: db}
}

// ListMembers returns the group's members, patients first so display
// code can pick the accompanied person without re-sorting.
func (s *Store) ListMembers(ctx context.Context, groupID uuid.UUID) ([]Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, group_id, role, name, email
		FROM group_members
		WHERE group_id = $1
		ORDER BY CASE WHEN role = 'patient' THEN 0 ELSE 1 END, name ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("groups: list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.UserID, &m.GroupID, &role, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("groups: scan member: %w", err)
		}
		m.Role = Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// Patient returns the group's patient member, or nil when the group has
// none registered.
func (s *Store) Patient(ctx context.Context, groupID uuid.UUID) (*Member, error) {
	members, err := s.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].Role == RolePatient {
			return &members[i], nil
		}
	}
	return nil, nil
}
