package models

// Identity is the display identity derived from the session cookie.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Credentials are the login and signup inputs.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and signup. The token itself travels as a cookie.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
}
