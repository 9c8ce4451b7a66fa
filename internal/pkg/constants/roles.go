package constants

// Workflow lane roles.
const (
	RoleDataEntry   = "L1" // Data Entry Specialist
	RoleCalculation = "L2" // Calculation Specialist
	RoleReviewer    = "L3" // QA Reviewer
	RoleApprover    = "L4" // Approver / Sustainability Manager
)

// ValidRoles is the set of allowed values for Users.role.
var ValidRoles = []string{RoleDataEntry, RoleCalculation, RoleReviewer, RoleApprover}

var roleNames = map[string]string{
	RoleDataEntry:   "Data Entry Specialist",
	RoleCalculation: "Calculation Specialist",
	RoleReviewer:    "QA Reviewer",
	RoleApprover:    "Approver",
}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleName returns the display name of a role code.
func RoleName(role string) string {
	if n, ok := roleNames[role]; ok {
		return n
	}
	return role
}
