// File: internal/flags/flags.go
package flags

// Centralized definitions for CLI flags used across the application

const (
	// Provider selects the storage backend (aws, gcp, minio)
	Provider      = "provider"
	ProviderShort = "p"

	// Bucket flags are used to specify the destination bucket
	Bucket      = "bucket"
	BucketShort = "b"

	// Prefix is the key prefix under which the source tree is mirrored
	Prefix = "prefix"

	Threads      = "threads"
	ThreadsShort = "t"

	BatchSize = "batch-size"

	// Exclude may be repeated; each value is a glob, a "dir/" pattern or a "**" pattern
	Exclude      = "exclude"
	ExcludeShort = "e"

	// Delete removes remote objects that no longer exist locally
	Delete = "delete"

	// DryRun reports intended actions without performing remote mutations
	DryRun      = "dry-run"
	DryRunShort = "n"

	// Force flags are used to bypass interactive confirmation prompts for destructive operations
	Force      = "force"
	ForceShort = "f"

	VerifySize = "verify-size"

	// NoProgress disables the live progress display
	NoProgress = "no-progress"

	// Format selects the summary output: table, json or yaml
	Format      = "format"
	FormatShort = "o"

	// Debug flags are used to enable verbose logging
	Debug      = "debug"
	DebugShort = "d"

	LogFile = "log-file"
)
