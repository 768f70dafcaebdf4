// Package models defines the entities persisted by the server and their
// field validation rules.
package models

import (
	"sort"
	"time"
)

// Closed set of role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"oneof=admin user"`
}

// User is an account. Password always holds the encoded login password.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"notblank,max=50"`
	Password  string    `json:"-"`
	Roles     []Role    `json:"roles" validate:"min=1,dive"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoleNames returns the role names sorted alphabetically.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// SortRoles orders roles by name for stable rendering.
func (u *User) SortRoles() {
	sort.Slice(u.Roles, func(i, j int) bool { return u.Roles[i].Name < u.Roles[j].Name })
}
