package auth

import (
	"strings"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

type Resource string

const (
	ResourceHospital    Resource = "hospital"
	ResourceTPA         Resource = "tpa"
	ResourceClaim       Resource = "claim"
	ResourceClaimStatus Resource = "claim-status"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type permission struct {
	resource  Resource
	operation Operation
}

var (
	admins   = []Role{RoleSuperAdmin, RoleAdmin}
	internal = []Role{RoleSuperAdmin, RoleAdmin, RoleStaff}
)

// policy is the full access table. Pairs not listed are denied to everyone.
// The Hospital role has no grants.
var policy = map[permission][]Role{
	{ResourceHospital, OpCreate}: admins,
	{ResourceHospital, OpRead}:   internal,
	{ResourceHospital, OpUpdate}: admins,
	{ResourceHospital, OpDelete}: admins,

	{ResourceTPA, OpCreate}: admins,
	{ResourceTPA, OpRead}:   internal,
	{ResourceTPA, OpUpdate}: admins,
	{ResourceTPA, OpDelete}: admins,

	{ResourceClaim, OpCreate}: internal,
	{ResourceClaim, OpRead}:   internal,
	{ResourceClaim, OpUpdate}: admins,

	{ResourceClaimStatus, OpUpdate}: admins,
}

// RolesFor returns the roles allowed to perform op on res.
func RolesFor(res Resource, op Operation) []Role {
	return policy[permission{res, op}]
}

// Authorize returns nil when role may perform op on res, else a Forbidden error
// naming the allowed roles.
func Authorize(role Role, res Resource, op Operation) error {
	allowed := RolesFor(res, op)
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return apperr.Forbidden("Access denied. Requires one of the following roles: " + strings.Join(names, ", "))
}
