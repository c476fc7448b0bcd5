package rbac

type Role string
type Action string

const (
	RoleViewer  Role = "viewer"
	RoleMember  Role = "member"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead       Action = "read"
	ActionComment    Action = "comment"
	ActionContribute Action = "contribute"
	ActionWrite      Action = "write"
	ActionAdmin      Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleCreator:
		return action == ActionRead || action == ActionComment || action == ActionContribute || action == ActionWrite
	case RoleMember:
		return action == ActionRead || action == ActionComment || action == ActionContribute
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RoleCreator, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
