package access

import (
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// PageID identifies a dashboard page/route for access decisions.
type PageID string

// Dashboard pages, grouped by the role surface they belong to.
const (
	PageAdminDashboard PageID = "admin.dashboard"
	PageUserManagement PageID = "admin.users"
	PageSettings       PageID = "admin.settings"

	PageConsultDashboard PageID = "consultant.dashboard"
	PageChatSessions     PageID = "consultant.chats"
	PageConsultStudents  PageID = "consultant.students"

	PageContentDashboard PageID = "content.dashboard"
	PageArticles         PageID = "content.articles"
	PageTemplates        PageID = "content.templates"

	PageAdmissionDashboard PageID = "admission.dashboard"
	PageApplications       PageID = "admission.applications"
	PageAdmissionStudents  PageID = "admission.students"

	PageCustomerHome     PageID = "customer.home"
	PageCustomerArticles PageID = "customer.articles"
	PageCustomerProfile  PageID = "customer.profile"
)

// rolePages is the ordered page list per role. Order matters: the first
// entry is the role's landing page and the redirect target when the current
// route becomes forbidden. The navigation tables in pkg/nav decorate these
// same IDs with labels and paths.
var rolePages = map[rolecat.Role][]PageID{
	rolecat.SystemAdmin: {
		PageAdminDashboard,
		PageUserManagement,
		PageArticles,
		PageTemplates,
		PageChatSessions,
		PageAdmissionStudents,
		PageSettings,
	},
	rolecat.Consultant: {
		PageConsultDashboard,
		PageChatSessions,
		PageConsultStudents,
	},
	rolecat.ContentManager: {
		PageContentDashboard,
		PageArticles,
		PageTemplates,
	},
	rolecat.AdmissionOfficer: {
		PageAdmissionDashboard,
		PageApplications,
		PageAdmissionStudents,
	},
	rolecat.Customer: {
		PageCustomerHome,
		PageCustomerArticles,
		PageCustomerProfile,
	},
}

// allowList maps each page to the set of roles permitted to view it,
// derived once from rolePages. Pages absent from this table are denied for
// everyone.
var allowList = buildAllowList()

func buildAllowList() map[PageID]rolecat.Set {
	table := make(map[PageID]rolecat.Set)
	for role, pages := range rolePages {
		for _, page := range pages {
			set, ok := table[page]
			if !ok {
				set = rolecat.NewSet()
				table[page] = set
			}
			set.Add(role)
			// The system admin may view every page in the table, not only
			// the ones on the admin navigation surface.
			set.Add(rolecat.SystemAdmin)
		}
	}
	return table
}

// CanAccess reports whether any of the user's effective roles may view the
// page. It is a pure function of its inputs: no hidden state, no I/O, safe
// to call on every request. Unknown pages are denied for all role sets.
func CanAccess(roles rolecat.Set, page PageID) bool {
	allowed, ok := allowList[page]
	if !ok {
		return false
	}
	for r := range roles {
		if allowed.Has(r) {
			return true
		}
	}
	return false
}

// AllowedRoles returns the roles permitted to view the page, in ID order.
// The second result is false for pages outside the table.
func AllowedRoles(page PageID) ([]rolecat.Role, bool) {
	allowed, ok := allowList[page]
	if !ok {
		return nil, false
	}
	return allowed.Roles(), true
}

// LandingPage returns the default page for a role: the first entry of its
// page table. Role switching navigates here.
func LandingPage(role rolecat.Role) (PageID, bool) {
	pages, ok := rolePages[role]
	if !ok || len(pages) == 0 {
		return "", false
	}
	return pages[0], true
}

// FallbackPage returns the first page in the active role's table that the
// effective role set may access. It is the redirect target when the current
// route fails CanAccess, e.g. after a permission change stripped access.
func FallbackPage(roles rolecat.Set, active rolecat.Role) (PageID, bool) {
	for _, page := range rolePages[active] {
		if CanAccess(roles, page) {
			return page, true
		}
	}
	return "", false
}

// RolePages returns a copy of the ordered page list for a role.
func RolePages(role rolecat.Role) []PageID {
	pages := rolePages[role]
	out := make([]PageID, len(pages))
	copy(out, pages)
	return out
}

// KnownPages returns every page in the allow-list table, unordered.
func KnownPages() []PageID {
	pages := make([]PageID, 0, len(allowList))
	for page := range allowList {
		pages = append(pages, page)
	}
	return pages
}
