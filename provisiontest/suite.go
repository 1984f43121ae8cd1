package provisiontest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruffel/provision"
)

// Standard categories for grouping tests.
const (
	CategoryCore      = "core"
	CategoryLifecycle = "lifecycle"
	CategoryErrors    = "errors"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Context() context.Context
	TempDir() string
	Name() string
}

// Factory returns a fresh supervisor for one contract. Contracts may close it.
type Factory func(t T) provision.Supervisor

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string
	Prereq      func(t T, sup provision.Supervisor) (ok bool, reason string)
	Run         func(t T, sup provision.Supervisor)
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// Verify is the standard Go test entry point for supervisor authors.
func Verify(t *testing.T, factory Factory) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			sup := factory(t)

			if tc.Prereq != nil {
				ok, reason := tc.Prereq(t, sup)
				if !ok {
					t.Skipf("prereq unmet: %s", reason)
				}
			}

			tc.Run(t, sup)
		})
	}
}
