package domain

// ProjectID identifies a Harvest project. It is only ever used as a lookup key.
type ProjectID string

// Project represents a Harvest project in the domain layer.
type Project struct {
	ID     ProjectID
	Name   string
	Code   string
	Client string
}

// Label renders the project the way rule listings show it, e.g. "ACME-1 - Website".
func (p Project) Label() string {
	if p.Code == "" {
		return p.Name
	}
	return p.Code + " - " + p.Name
}

// User is the account the configured credentials belong to.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}
