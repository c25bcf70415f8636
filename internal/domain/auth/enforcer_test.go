package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcerRoleCapabilities(t *testing.T) {
	e, err := NewEnforcer(RolePermissions)
	require.NoError(t, err)
	ctx := context.Background()

	cases := []struct {
		name       string
		actor      Actor
		capability string
		want       bool
	}{
		{"finance approves", Actor{UserID: "u1", Role: RoleFinance}, CapFinanceApprove, true},
		{"hr cannot approve finance", Actor{UserID: "u2", Role: RoleHR}, CapFinanceApprove, false},
		{"hr manages payroll", Actor{UserID: "u2", Role: RoleHR}, CapPayrollManage, true},
		{"employee views payroll", Actor{UserID: "u3", Role: RoleEmployee}, CapPayrollView, true},
		{"employee cannot manage", Actor{UserID: "u3", Role: RoleEmployee}, CapPayrollManage, false},
		{"admin wildcard", Actor{UserID: "u4", Role: RoleAdmin}, CapFinanceApprove, true},
		{"unknown role", Actor{UserID: "u5", Role: "contractor"}, CapPayrollView, false},
		{"anonymous", Actor{}, CapPayrollView, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.HasPermission(ctx, tc.actor, tc.capability)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEnforcerAssignRole(t *testing.T) {
	e, err := NewEnforcer(RolePermissions)
	require.NoError(t, err)

	actor := Actor{UserID: "hr-lead", Role: RoleHR}
	allowed, err := e.HasPermission(context.Background(), actor, CapFinanceApprove)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, e.AssignRole("hr-lead", RoleFinance))

	allowed, err = e.HasPermission(context.Background(), actor, CapFinanceApprove)
	require.NoError(t, err)
	assert.True(t, allowed)
}
