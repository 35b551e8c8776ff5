package models

// Identity is the reviewer identity taken from the caller's session.
// Empty fields mean the value was absent. Session writers store a literal "null"
// for unknown names, so readers must treat that as absent too.
type Identity struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Username  string `json:"username"`
}
