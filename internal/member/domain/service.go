package domain

import (
	"context"
	"errors"
)

type RegisterRequest struct {
	Code       string
	ParentCode string
	Level      int
}

type Service interface {
	// Register creates a member under the given parent, reserving a slot at
	// the requested level atomically with the insert.
	Register(ctx context.Context, req RegisterRequest) (Member, error)
	// Get returns the full member record.
	Get(ctx context.Context, code string) (Member, error)
	// Snapshot returns the reward view of a member. It may be served from a
	// short-lived cache.
	Snapshot(ctx context.Context, code string) (Snapshot, error)
	// AncestorChain returns the ordered ancestors of a member starting from
	// its immediate parent, stopping at the root or after maxDepth hops.
	// A chain shorter than maxDepth is valid.
	AncestorChain(ctx context.Context, code string, maxDepth int) ([]Member, error)
	// Remove deletes a member that has no descendants and frees its level slot.
	Remove(ctx context.Context, code string) error
	// Tree returns the whole referral tree breadth-first for reporting.
	Tree(ctx context.Context) (*TreeNode, error)
}

var (
	ErrInvalidCode    = errors.New("invalid_code")
	ErrDuplicateCode  = errors.New("duplicate_code")
	ErrParentNotFound = errors.New("parent_not_found")
	ErrNotFound       = errors.New("member_not_found")
	ErrHasDescendants = errors.New("has_descendants")
	ErrCycleDetected  = errors.New("cycle_detected")
	ErrRootExists     = errors.New("root_exists")
)
