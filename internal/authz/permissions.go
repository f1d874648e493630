package authz

import "safety-inspection/internal/entities"

type Permission string

const (
	FindingsView   Permission = "findings:view"
	FindingsTriage Permission = "findings:triage"
	FindingsReport Permission = "findings:report"
	AreasView      Permission = "areas:view"
	AreasManage    Permission = "areas:manage"
	UsersManage    Permission = "users:manage"
	SystemSetup    Permission = "system:setup"
)

var rolePermissions = map[entities.Role][]Permission{
	entities.RoleReporter: {
		FindingsView, FindingsReport, AreasView,
	},
	entities.RoleAdmin: {
		FindingsView, FindingsReport, FindingsTriage, AreasView,
	},
	entities.RoleSuperAdmin: {
		FindingsView, FindingsReport, FindingsTriage, AreasView, AreasManage, UsersManage, SystemSetup,
	},
}
