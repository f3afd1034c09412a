package auth

import "context"

// StaticRoleChecker grants the ride-deletion privilege to a fixed set of
// user ids loaded from configuration. The identity provider supplies the
// ids; this just answers the role question.
type StaticRoleChecker struct {
	admins map[string]bool
}

// NewStaticRoleChecker creates a checker from a list of admin user ids
func NewStaticRoleChecker(adminIDs []string) *StaticRoleChecker {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id != "" {
			admins[id] = true
		}
	}
	return &StaticRoleChecker{admins: admins}
}

// CanDeleteRides reports whether the user holds the deletion privilege
func (c *StaticRoleChecker) CanDeleteRides(ctx context.Context, userID string) bool {
	return c.admins[userID]
}
