package auth

// Requirement is the declared access policy of a protected operation: which
// roles may call it (any-of) and which permissions the caller must hold (all
// of them). Routes attach requirements explicitly; there is no annotation
// scanning. A nil *Requirement on a route means the route is public and the
// guard is never consulted; a zero-value Requirement means the caller must be
// authenticated but nothing more.
type Requirement struct {
	Roles       []string
	Permissions []Permission
}

// IsEmpty reports whether the requirement demands only authentication.
func (r Requirement) IsEmpty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// Decide renders an allow/deny decision for a caller against a declared
// requirement. It is a pure function of its inputs and holds no state.
//
// The role check passes when the requirement lists no roles, or when the
// caller holds at least one of them. The permission check passes when the
// requirement lists no permissions, or when the caller holds every one of
// them; partial credit is never granted. The decision is the conjunction of
// both checks. An absent caller is always denied.
func Decide(principal *Principal, req Requirement) bool {
	if principal == nil {
		return false
	}
	if len(req.Roles) > 0 {
		anyRole := false
		for _, role := range req.Roles {
			if principal.HasRole(role) {
				anyRole = true
				break
			}
		}
		if !anyRole {
			return false
		}
	}
	for _, perm := range req.Permissions {
		if !principal.HasPermission(perm) {
			return false
		}
	}
	return true
}
