// Package nav computes the visible navigation entries for the active role
// from the static per-role navigation tables, consuming the access policy
// for per-entry gating.
package nav

import (
	"github.com/enrollhq/accessgate/pkg/access"
	"github.com/enrollhq/accessgate/pkg/rolecat"
)

// Item is one entry of a role's static navigation table.
type Item struct {
	Page  access.PageID `json:"page"`
	Label string        `json:"label"`
	Path  string        `json:"path"`
}

// Entry is a navigation item with its computed enabled state. Disabled
// entries still render, greyed out, so the user can see what exists without
// being able to enter it.
type Entry struct {
	Item
	Enabled bool `json:"enabled"`
}

// tables holds the fixed, ordered navigation table per role. The page order
// must match access.RolePages for each role; the policy derives its
// allow-lists and fallback targets from that same order.
var tables = map[rolecat.Role][]Item{
	rolecat.SystemAdmin: {
		{Page: access.PageAdminDashboard, Label: "Dashboard", Path: "/admin"},
		{Page: access.PageUserManagement, Label: "Users", Path: "/admin/users"},
		{Page: access.PageArticles, Label: "Articles", Path: "/content/articles"},
		{Page: access.PageTemplates, Label: "Templates", Path: "/content/templates"},
		{Page: access.PageChatSessions, Label: "Consultations", Path: "/consult/chats"},
		{Page: access.PageAdmissionStudents, Label: "Students", Path: "/admission/students"},
		{Page: access.PageSettings, Label: "Settings", Path: "/admin/settings"},
	},
	rolecat.Consultant: {
		{Page: access.PageConsultDashboard, Label: "Dashboard", Path: "/consult"},
		{Page: access.PageChatSessions, Label: "Chat Sessions", Path: "/consult/chats"},
		{Page: access.PageConsultStudents, Label: "Students", Path: "/consult/students"},
	},
	rolecat.ContentManager: {
		{Page: access.PageContentDashboard, Label: "Dashboard", Path: "/content"},
		{Page: access.PageArticles, Label: "Articles", Path: "/content/articles"},
		{Page: access.PageTemplates, Label: "Templates", Path: "/content/templates"},
	},
	rolecat.AdmissionOfficer: {
		{Page: access.PageAdmissionDashboard, Label: "Dashboard", Path: "/admission"},
		{Page: access.PageApplications, Label: "Applications", Path: "/admission/applications"},
		{Page: access.PageAdmissionStudents, Label: "Students", Path: "/admission/students"},
	},
	rolecat.Customer: {
		{Page: access.PageCustomerHome, Label: "Home", Path: "/"},
		{Page: access.PageCustomerArticles, Label: "Articles", Path: "/articles"},
		{Page: access.PageCustomerProfile, Label: "Profile", Path: "/profile"},
	},
}

// Table returns a copy of the static navigation table for a role.
func Table(role rolecat.Role) []Item {
	items := tables[role]
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// VisibleNav returns the navigation entries for the active role. The
// primary-role surface gates each entry through the access policy, which
// allows finer per-page gating than plain role membership; a surface reached
// by switching roles is shown as-is, every entry enabled, because reaching
// it already required the role to be in the effective set.
func VisibleNav(active, primary rolecat.Role, roles rolecat.Set) []Entry {
	items := tables[active]
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		enabled := true
		if active == primary {
			enabled = access.CanAccess(roles, item.Page)
		}
		entries = append(entries, Entry{Item: item, Enabled: enabled})
	}
	return entries
}

// RedirectTarget decides where the client should be after a route change:
// the current page when it is still allowed, otherwise the first allowed
// entry of the active role's navigation. The second result is false when no
// target exists at all.
func RedirectTarget(current access.PageID, roles rolecat.Set, active rolecat.Role) (access.PageID, bool) {
	if access.CanAccess(roles, current) {
		return current, true
	}
	return access.FallbackPage(roles, active)
}

// PathFor returns the route path for a page on the given role's surface.
func PathFor(role rolecat.Role, page access.PageID) (string, bool) {
	for _, item := range tables[role] {
		if item.Page == page {
			return item.Path, true
		}
	}
	return "", false
}
