package models

// Group is a named container of entries owned by exactly one user. Names are
// unique per owner, ignoring case.
type Group struct {
	ID     int64  `json:"id"`
	Name   string `json:"name" validate:"notblank,max=50"`
	UserID int64  `json:"-"`
	User   *User  `json:"-" validate:"-"`
}

// OwnedBy reports whether userID owns the group.
func (g *Group) OwnedBy(userID int64) bool {
	return g.UserID == userID
}
