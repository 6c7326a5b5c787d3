package rbac

// 权限常量
const (
	PermissionImportProject = "project:import"
	PermissionReadProject   = "project:read"
	PermissionDeleteProject = "project:delete"

	PermissionReadTask   = "task:read"
	PermissionUpdateTask = "task:update"
	PermissionDeleteTask = "task:delete"
)

// 角色常量
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleEmployee: {
		PermissionReadProject,
		PermissionReadTask,
		PermissionUpdateTask,
	},
	RoleManager: {
		PermissionImportProject,
		PermissionReadProject,
		PermissionReadTask,
		PermissionUpdateTask,
		PermissionDeleteTask,
	},
	RoleAdmin: {
		PermissionImportProject,
		PermissionReadProject,
		PermissionDeleteProject,
		PermissionReadTask,
		PermissionUpdateTask,
		PermissionDeleteTask,
	},
}

// NormalizeRole 未知或为空的角色按 employee 处理
func NormalizeRole(role string) string {
	if _, ok := rolePermissions[role]; ok {
		return role
	}
	return RoleEmployee
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[NormalizeRole(role)] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查权限（返回错误而不是布尔值，便于处理）
func CheckPermission(userID int64, role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     int64
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
