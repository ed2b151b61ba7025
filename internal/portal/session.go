package portal

// Session is an authenticated portal session of one user. It is only
// valid for the portal that issued it.
type Session struct {
	UserID  string  `json:"user_id"`
	Cookies Cookies `json:"cookies"`
}
