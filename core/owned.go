package core

// Owned is implemented by any entity controlled by a single user.
// Authorization checks rely on this accessor instead of probing attributes.
type Owned interface {
	OwnedBy() string // owning user ID
}

// IsOwner reports whether userID owns obj.
func IsOwner(obj Owned, userID string) bool {
	return obj != nil && userID != "" && obj.OwnedBy() == userID
}
