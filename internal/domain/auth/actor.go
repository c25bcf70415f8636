package auth

import "context"

// Actor is the authenticated caller as seen by the domain services.
type Actor struct {
	UserID     string `json:"userId"`
	EmployeeID string `json:"employeeId,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
}

// Label is what provenance fields such as processedBy are stamped with.
func (a Actor) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}

type ctxKey string

const actorKey ctxKey = "actor"

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
