// Package testutil provides deterministic test doubles shared across packages.
package testutil
