package gitsource

import (
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/exec"
)

// wrapError wraps an error with context, classifying it as a platform error
// type. It preserves the original error chain for errors.Is/errors.As
// compatibility. If err is nil, returns nil.
func wrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, classifyError(err))
}

// classifyError maps go-git errors to platform error types. Only the
// read-path errors this package can actually hit are classified; unknown
// errors pass through unchanged to preserve their original information.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return platformerrors.New(platformerrors.CodeNotFound, "repository does not exist")
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return platformerrors.New(platformerrors.CodeNotFound, "reference not found")
	}
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return platformerrors.New(platformerrors.CodeNotFound, "object not found")
	}

	return err
}

// mapExecError converts a git CLI failure to a platform error by examining
// the command's stderr for well-known patterns.
func mapExecError(err error, context string) error {
	var execErr *exec.ExecError
	if !errors.As(err, &execErr) {
		return wrapError(err, context)
	}

	stderr := execErr.Stderr
	switch {
	case strings.Contains(stderr, "not a git repository"):
		return wrapError(gogit.ErrRepositoryNotExists, context)
	case strings.Contains(stderr, "unknown revision"),
		strings.Contains(stderr, "bad revision"):
		return wrapError(plumbing.ErrReferenceNotFound, context)
	}

	return wrapError(err, context)
}
