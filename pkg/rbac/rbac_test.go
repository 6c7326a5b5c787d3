package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleEmployee, PermissionReadTask, true},
		{RoleEmployee, PermissionUpdateTask, true},
		{RoleEmployee, PermissionDeleteTask, false},
		{RoleEmployee, PermissionImportProject, false},
		{RoleManager, PermissionImportProject, true},
		{RoleManager, PermissionDeleteProject, false},
		{RoleAdmin, PermissionDeleteProject, true},
		{"", PermissionReadProject, true},
		{"root", PermissionDeleteProject, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPermission(tt.role, tt.permission), "%s %s", tt.role, tt.permission)
	}
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission(1, RoleAdmin, PermissionDeleteTask))

	err := CheckPermission(2, RoleEmployee, PermissionDeleteTask)
	var denied *PermissionDeniedError
	if assert.True(t, errors.As(err, &denied)) {
		assert.Equal(t, int64(2), denied.UserID)
		assert.Equal(t, PermissionDeleteTask, denied.Permission)
	}
}
