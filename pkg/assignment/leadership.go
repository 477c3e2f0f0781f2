package assignment

import (
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// DeriveLeadership computes the leadership escalation flags from the primary
// role and the granted permission set. Leadership is a proxy for "this
// person has cross-functional reach", not an independently settable flag:
//
//   - a consultant leads when granted admin, content_manager, or more than
//     one permission of any kind;
//   - a content manager leads when granted admin, consultant, or more than
//     one permission of any kind.
//
// A flag is meaningful only for the matching primary role and is always
// false otherwise. The function is pure; whatever flag values were stored
// upstream are ignored and recomputed from scratch.
func DeriveLeadership(primary rolecat.Role, perms rolecat.Set) (consultantIsLeader, contentManagerIsLeader bool) {
	if perms == nil {
		perms = rolecat.NewSet()
	}
	crossFunctional := perms.Len() > 1

	if primary == rolecat.Consultant {
		consultantIsLeader = perms.Has(rolecat.SystemAdmin) ||
			perms.Has(rolecat.ContentManager) ||
			crossFunctional
	}
	if primary == rolecat.ContentManager {
		contentManagerIsLeader = perms.Has(rolecat.SystemAdmin) ||
			perms.Has(rolecat.Consultant) ||
			crossFunctional
	}
	return consultantIsLeader, contentManagerIsLeader
}
