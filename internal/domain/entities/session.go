package entities

// Session identifies an authenticated user for the duration of a request.
// It is passed explicitly to anything that acts on the user's behalf so the
// aggregator and registry client never depend on ambient cookie state.
type Session struct {
	Token    string
	UserID   int64
	Username string
	Email    string
}
