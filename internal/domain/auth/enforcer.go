package auth

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// A role subject matches its own policies through g(); user subjects can be
// granted roles with AssignRole.
const policyModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub)) && (p.obj == r.obj || p.obj == "*")
`

type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(rolePermissions map[string][]string) (*Enforcer, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("load permission model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	for role, caps := range rolePermissions {
		for _, capability := range caps {
			if _, err := e.AddPolicy(role, capability); err != nil {
				return nil, fmt.Errorf("add policy %s/%s: %w", role, capability, err)
			}
		}
	}
	return &Enforcer{enforcer: e}, nil
}

// AssignRole grants a user the capabilities of an extra role.
func (e *Enforcer) AssignRole(userID, role string) error {
	_, err := e.enforcer.AddGroupingPolicy(userID, role)
	return err
}

func (e *Enforcer) HasPermission(_ context.Context, actor Actor, capability string) (bool, error) {
	if actor.UserID == "" && actor.Role == "" {
		return false, nil
	}
	if actor.Role != "" {
		ok, err := e.enforcer.Enforce(actor.Role, capability)
		if err != nil || ok {
			return ok, err
		}
	}
	if actor.UserID == "" {
		return false, nil
	}
	return e.enforcer.Enforce(actor.UserID, capability)
}
