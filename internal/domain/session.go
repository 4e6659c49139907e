package domain

import "time"

// User is the profile attached to an authenticated session.
type User struct {
	ID       UserID
	Email    string
	Name     string
	JoinDate time.Time // date-only semantics
}

// AuthSession exists between a successful credential check and logout.
type AuthSession struct {
	User    User
	LoginAt time.Time
}
