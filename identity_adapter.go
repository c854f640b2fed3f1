package accounts

// UserIdentity adapts a User into the Identity interface. The adapter is the
// boundary where the password hash stops: it never exposes or copies it.
type UserIdentity struct {
	id       string
	username string
	email    string
	status   UserStatus
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
		status:   user.Status,
	}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	return u.id
}

// Username returns the user's username.
func (u UserIdentity) Username() string {
	return u.username
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	return u.email
}

// Status returns the user's lifecycle status.
func (u UserIdentity) Status() UserStatus {
	return u.status
}
