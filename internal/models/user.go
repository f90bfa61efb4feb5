package models

// User represents the profile of a registered member as returned by
// /login and /user/profile.
type User struct {
	// ID is the backend identifier of the user.
	ID int64 `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Email is the login address (unique).
	Email string `json:"email"`

	// Phone is the M-Pesa phone number in 254xxxxxxxxx form.
	Phone string `json:"phone"`

	// IsAdmin reports whether the user administers their group.
	IsAdmin bool `json:"is_admin"`

	// GroupID is the group the user belongs to, zero when not in a group.
	GroupID int64 `json:"group_id"`

	// GroupName is the display name of the user's group, if any.
	GroupName string `json:"group_name"`

	// MonthlyTotal is the server-computed contribution total for the current month.
	MonthlyTotal float64 `json:"monthly_total"`

	// ProfilePhoto is an absolute URL of the avatar, empty when unset.
	ProfilePhoto string `json:"profile_photo"`

	// IsVerified reports whether the email address was confirmed.
	IsVerified bool `json:"is_verified"`
}

// InGroup reports whether the user belongs to a group.
func (u *User) InGroup() bool {
	return u != nil && u.GroupID != 0
}

// Session is the locally persisted authentication state.
// It is created on a successful login callback and destroyed on logout or
// on any 401 response from the backend.
type Session struct {
	// Token is the opaque bearer credential, attached verbatim to requests.
	Token string `json:"token"`

	// UserID is the authenticated user's backend id.
	UserID int64 `json:"user_id"`

	// IsAdmin mirrors User.IsAdmin at login time.
	IsAdmin bool `json:"is_admin"`

	// GroupID mirrors User.GroupID at login time.
	GroupID int64 `json:"group_id"`

	// User is the cached profile returned with the token.
	User *User `json:"user,omitempty"`

	// ExpiresAt is the token expiry as Unix seconds, zero when unknown.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// AuthResponse is the body of a successful login or OAuth callback.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
	Message     string `json:"message,omitempty"`
}

// RegisterRequest holds the fields of the registration form.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ProfileUpdate holds the editable profile fields. Empty fields are omitted.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
