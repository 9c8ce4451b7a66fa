package constants

const (
	ViewData        = "view_data"
	CreateProject   = "create_project"
	EditProject     = "edit_project"
	CollectData     = "collect_data"
	UploadEvidence  = "upload_evidence"
	SubmitData      = "submit_data"
	ReturnProject   = "return_project"
	TransformData   = "transform_data"
	SubmitForReview = "submit_for_review"
	VerifyData      = "verify_data"
	ReviewDecision  = "review_decision"
	FinalApproval   = "final_approval"
	ViewReports     = "view_reports"
	ManageUsers     = "manage_users"
	RecomputeTotals = "recompute_totals"
	ViewAuditTrail  = "view_audit_trail"
)

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:        {RoleDataEntry, RoleCalculation, RoleReviewer, RoleApprover},
	CreateProject:   {RoleDataEntry},
	EditProject:     {RoleDataEntry},
	CollectData:     {RoleDataEntry},
	UploadEvidence:  {RoleDataEntry},
	SubmitData:      {RoleDataEntry},
	ReturnProject:   {RoleDataEntry, RoleCalculation},
	TransformData:   {RoleCalculation},
	SubmitForReview: {RoleCalculation},
	RecomputeTotals: {RoleCalculation},
	VerifyData:      {RoleReviewer},
	ReviewDecision:  {RoleReviewer},
	FinalApproval:   {RoleApprover},
	ViewReports:     {RoleReviewer, RoleApprover},
	ViewAuditTrail:  {RoleReviewer, RoleApprover},
	ManageUsers:     {RoleApprover},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
