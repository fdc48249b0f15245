package toolkit

type (
	// Script is one revision node in the migration history graph: an
	// identifier, its parent revisions (more than one for a merge), any
	// branch labels and dependencies, and the per-database upgrade and
	// downgrade SQL sections parsed from the revision file.
	Script struct {
		// Revision is the unique identifier of this revision.
		Revision string

		// DownRevisions lists the parent revision ids. Empty for a base
		// revision, more than one entry for a merge revision.
		DownRevisions []string

		// BranchLabels holds the labels attached to this revision. A label
		// names the independent branch rooted here.
		BranchLabels []string

		// DependsOn lists revisions that must be applied before this one
		// without being ancestors in the down-revision graph.
		DependsOn []string

		// Message is the human description given at creation time.
		Message string

		// Path is the file the revision was loaded from or written to.
		Path string

		// Branchpoint reports whether more than one revision names this
		// one as a parent. Computed when the revision map is built.
		Branchpoint bool

		// Up and Down hold the SQL section bodies keyed by logical
		// database name ("default" for single-database scripts).
		Up   map[string]string
		Down map[string]string
	}

	// StepOp identifies what a migration step does to the database.
	StepOp int

	// MigrationStep is one unit of work planned by a script directory:
	// apply a revision, revert it, or move the recorded version pointers
	// without touching the schema (a stamp).
	//
	// DeleteVersions/InsertVersions describe the version-table delta the
	// runtime applies after executing the step's SQL. Entries in
	// DeleteVersions that are not currently recorded are skipped.
	MigrationStep struct {
		Op             StepOp
		Revision       *Script
		DeleteVersions []string
		InsertVersions []string
	}

	// StepFunc plans the ordered steps to run for one migration context.
	// It receives the revision ids currently recorded as applied and the
	// context the steps will run against.
	StepFunc func(applied []string, mc MigrationContext) ([]MigrationStep, error)
)

const (
	// StepUpgrade applies a revision's upgrade section.
	StepUpgrade StepOp = iota
	// StepDowngrade applies a revision's downgrade section.
	StepDowngrade
	// StepStamp rewrites the recorded versions without executing SQL.
	StepStamp
)

// GenerateRequest carries everything a script directory needs to write a
// new revision file.
type GenerateRequest struct {
	RevID        string
	Message      string
	Heads        []string // parent revision references
	Splice       bool     // allow a non-head parent
	BranchLabels []string
	VersionPath  string // target directory; script root when empty
	DependsOn    []string
	Config       *Config

	// Up and Down optionally pre-populate the SQL sections per logical
	// database name (autogenerated content). When nil the template's
	// empty sections are emitted for each configured database.
	Up   map[string]string
	Down map[string]string
}

// ScriptDirectory is the handle over on-disk revision files: reference
// resolution, graph walks, step planning and revision generation.
//
// Symbolic references understood by GetRevisions: a revision id (or
// unique prefix), "base" (the empty state, resolves to no revisions),
// "head" (the single head, an error when the graph has several),
// "heads" (every dependency-resolved head), a branch label, and the
// branch-qualified forms "label@head" and "label@base".
type ScriptDirectory interface {
	// Dir returns the script storage root.
	Dir() string

	// VersionLocations returns every directory revision files may live
	// in, including the script root.
	VersionLocations() []string

	// GetRevision resolves a single reference to exactly one revision.
	GetRevision(ref string) (*Script, error)

	// GetRevisions resolves each reference and flattens the result.
	GetRevisions(refs ...string) ([]*Script, error)

	// StrictHeads returns the ids of revisions with no child revision,
	// ignoring dependency edges.
	StrictHeads() []string

	// WalkRevisions returns the revisions between lower (exclusive,
	// "base" for the beginning) and upper (inclusive) in the order they
	// would be applied.
	WalkRevisions(lower, upper []string) ([]*Script, error)

	// BranchRevisions returns every revision belonging to the named
	// branch. Returns a *ResolutionError when the branch is unknown.
	BranchRevisions(branch string) ([]*Script, error)

	// UpgradeRevs plans the steps to move from the applied revisions up
	// to the targets. A single target may be a relative "+N" offset.
	UpgradeRevs(targets []string, applied []string) ([]MigrationStep, error)

	// DowngradeRevs plans the steps to move from the applied revisions
	// down to target, which may be a relative "-N" offset or "base".
	DowngradeRevs(target string, applied []string) ([]MigrationStep, error)

	// StampRevs plans the version-table rewrite from the applied
	// revisions to the targets without executing any SQL.
	StampRevs(targets []string, applied []string) ([]MigrationStep, error)

	// GenerateRevision renders the script template and writes a new
	// revision file, returning its parsed form.
	GenerateRevision(req GenerateRequest) (*Script, error)
}
