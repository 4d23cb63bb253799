package ports

import (
	"context"
	"errors"

	"github.com/janderssonse/signservice-integration/internal/core/domain"
)

// PolicyStore provides the configured integration policies.
type PolicyStore interface {
	// Policy returns the named policy. Returns ErrPolicyNotFound if unknown.
	Policy(name string) (*domain.PolicyConfiguration, error)

	// Refresh reloads the policies from the backing source.
	Refresh(ctx context.Context) error
}

// ErrPolicyNotFound is returned when no policy with the given name exists.
var ErrPolicyNotFound = errors.New("policy not found")
