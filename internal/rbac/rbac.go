package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead     Action = "read"     // view tasks and their discussions
	ActionComment  Action = "comment"  // create/edit/delete own comments
	ActionReact    Action = "react"    // add/remove own reactions
	ActionExport   Action = "export"   // export discussion transcripts
	ActionModerate Action = "moderate" // edit/delete any comment
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionComment || action == ActionReact || action == ActionExport
	case RoleViewer:
		return action == ActionRead || action == ActionExport
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
