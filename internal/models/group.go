package models

// Group represents a set of people who share expenses.
// Membership management beyond what the ledger needs (create, add members)
// lives outside this engine.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates").
	Name string

	// Members lists member user IDs in join order. Join order is load
	// bearing: the equal-split remainder is handed out in this order so
	// splits are deterministic and reproducible.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
