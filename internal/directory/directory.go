// Package directory defines the gateway's view of the rest of the system:
// token verification, principal lookup and group-membership lookup. The
// gateway never talks to the datastore or auth service except through these
// interfaces.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by resolvers when no matching record exists.
var ErrNotFound = errors.New("directory: not found")

// Identity is the decoded result of a verified bearer credential.
type Identity struct {
	Subject string
}

// Principal is the authenticated user record attached to a connection.
// StudentID is empty when the account has no linked student profile.
type Principal struct {
	ID        string
	Name      string
	Email     string
	StudentID string
}

// Membership describes a principal's current active group, if any.
type Membership struct {
	GroupID   string
	ProjectID string
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type PrincipalResolver interface {
	// Resolve returns the principal for a decoded token subject.
	Resolve(ctx context.Context, subject string) (*Principal, error)
	// ResolveByStudent returns the principal linked to a student profile.
	ResolveByStudent(ctx context.Context, studentID string) (*Principal, error)
}

type MembershipResolver interface {
	// ActiveMembership returns the principal's current active group, or
	// (nil, nil) when the principal is between groups.
	ActiveMembership(ctx context.Context, p *Principal) (*Membership, error)
	// IsActiveMember reports whether the principal currently holds an
	// active membership row for the given group.
	IsActiveMember(ctx context.Context, p *Principal, groupID string) (bool, error)
	// IsProjectCollaborator reports whether the principal is an active
	// member of the group working on the given project.
	IsProjectCollaborator(ctx context.Context, p *Principal, projectID string) (bool, error)
}
