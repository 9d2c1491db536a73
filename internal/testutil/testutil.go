// Package testutil provides test helpers for mailidx tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertContainsAll)
//   - store_helpers.go: index test setup (NewTestStore, SeedStore)
//   - fs_helpers.go: filesystem fixtures (WriteFile, WriteMbox, MustExist)
//   - builders.go: document builders for seeding an index
//
// Raw RFC 5322 messages are built with the email subpackage.
package testutil
