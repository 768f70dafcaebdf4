package models

import "time"

// Entry is a stored credential. Password holds the encrypted value once
// persisted; validation runs on the plaintext before encryption.
type Entry struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name" validate:"notblank,max=255"`
	Login       *string    `json:"login" validate:"omitempty,max=255"`
	Email       *string    `json:"email" validate:"omitempty,max=255"`
	Password    *string    `json:"password" validate:"omitempty,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	ExpiredDate *time.Time `json:"expiredDate"`
	GroupID     *int64     `json:"groupId"`
	Group       *Group     `json:"-" validate:"-"`
	UserID      int64      `json:"-"`
	User        *User      `json:"-" validate:"-"`
}

// OwnedBy reports whether userID owns the entry.
func (e *Entry) OwnedBy(userID int64) bool {
	return e.UserID == userID
}

// HasPassword reports whether a non-empty password is stored.
func (e *Entry) HasPassword() bool {
	return e.Password != nil && *e.Password != ""
}

// DaysLeft returns the number of calendar days from today until the expiry
// date, negative once expired, or nil when no expiry is set.
func (e *Entry) DaysLeft(today time.Time) *int {
	if e.ExpiredDate == nil {
		return nil
	}
	d := int(dateOf(*e.ExpiredDate).Sub(dateOf(today)).Hours() / 24)
	return &d
}

// DaysLeftNow is DaysLeft for the current local date.
func (e *Entry) DaysLeftNow() *int {
	return e.DaysLeft(time.Now())
}

// ExpiryAfterMonths returns the date months calendar months after today.
// The day is clamped to the end of a shorter target month, so Jan 31 plus
// one month is the last day of February.
func ExpiryAfterMonths(today time.Time, months int) time.Time {
	y, m, d := today.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

// dateOf drops the clock part, keeping the calendar date as UTC midnight so
// day arithmetic is not skewed by DST changes.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
