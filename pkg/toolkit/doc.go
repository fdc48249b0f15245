// Package toolkit defines the interface surface between revisor's
// lifecycle core and the migration toolkit collaborators that do the
// actual work: the script directory over on-disk revision files, the
// runtime environment that owns database connections, and the
// autogeneration machinery that diffs live schemas against declared
// metadata.
//
// The core (pkg/migrate) is written entirely against these interfaces.
// The in-repo implementations live in pkg/script, pkg/runtime and
// pkg/autogen, but any implementation satisfying these contracts can be
// substituted, which is also how the test suites exercise edge cases.
package toolkit
