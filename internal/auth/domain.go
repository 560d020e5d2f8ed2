package auth

import "time"

// StaffUser is a back-office login account.
type StaffUser struct {
	ID           int64
	Username     string
	PasswordHash string
	EmployeeID   *int64
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Me is the public view of the logged in user.
type Me struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}
