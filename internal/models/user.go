package models

import "time"

// Role is the privilege level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// CalendarCredential holds the Google Calendar OAuth tokens of a user.
// It is never serialized to API responses.
type CalendarCredential struct {
	AccessToken  string    `bson:"accessToken" json:"-"`
	RefreshToken string    `bson:"refreshToken" json:"-"`
	Expiry       time.Time `bson:"tokenExpiry" json:"-"`
}

// Expired reports whether the access token must be refreshed before use.
func (c *CalendarCredential) Expired(now time.Time) bool {
	return !now.Before(c.Expiry)
}

// User represents an application user, keyed externally by the identity provider subject.
type User struct {
	ID              string              `bson:"_id,omitempty" json:"id"`
	Sub             string              `bson:"sub" json:"sub"` // identity provider subject
	Email           string              `bson:"email" json:"email"`
	DisplayName     string              `bson:"displayName" json:"displayName"`
	PhotoURL        string              `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Role            Role                `bson:"role" json:"role"`
	CreatedEvents   []string            `bson:"createdEvents" json:"createdEvents"`
	AttendingEvents []string            `bson:"attendingEvents" json:"attendingEvents"`
	GoogleCalendar  *CalendarCredential `bson:"googleCalendar,omitempty" json:"-"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CalendarConnected reports whether the user has linked a Google Calendar.
func (u *User) CalendarConnected() bool {
	return u.GoogleCalendar != nil && u.GoogleCalendar.RefreshToken != ""
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
