package models

import "time"

// RefreshToken is a server-side record of an issued refresh token.
type RefreshToken struct {
	UserID  int64
	Token   string
	Expires time.Time
}
