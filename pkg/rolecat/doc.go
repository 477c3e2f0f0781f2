// Package rolecat is the permission catalog for the admissions CRM: the
// canonical bidirectional mapping between permission names and role IDs.
//
// # Catalog
//
// The five roles and their permission names are fixed:
//
//	1  admin              (aliases: SYSTEM_ADMIN, ADMIN)
//	2  consultant         (alias:   CONSULTANT)
//	3  content_manager    (alias:   CONTENT_MANAGER)
//	4  admission_officer  (alias:   ADMISSION_OFFICER)
//	5  customer           (alias:   CUSTOMER; fallback for null role IDs)
//
// A permission names access to a role's capability set, so permissions and
// roles share one identifier space and a user's grants are a Set of Role.
//
// The tables are package-level immutable values: safe to read from any
// goroutine, no mutation API. Historically the dashboard redefined these
// maps ad hoc in half a dozen components; every consumer must go through
// this package instead.
//
// NameToID and IDToName form a bijection over the catalog:
//
//	IDToName(NameToID(n)) == Normalize(n)
//
// MapPermissionNames implements the lenient batch translation used when
// submitting permission updates: unknown names are dropped, not errors.
package rolecat
