// Package analysis defines the boundary between the synchronization core and
// the semantic engine. The core never parses or type-checks source itself; it
// only needs to know which modules a file pulls in and how a module specifier
// maps to a concrete file, so that the right file set is available before
// resolution is attempted.
package analysis

// Dependencies lists what one file pulls in: module specifiers from import,
// export-from, require and dynamic import forms, and the paths of triple-slash
// reference directives.
type Dependencies struct {
	Imports    []string
	References []string
}

// CompilerOptions is the subset of a project configuration's compiler options
// that module resolution depends on.
type CompilerOptions struct {
	// Module is the module system ("commonjs", "esnext", ...).
	Module string

	// BaseURL is the workspace path non-relative specifiers resolve against,
	// empty when unset.
	BaseURL string

	// Paths maps specifier patterns (single "*" wildcard) to candidate path
	// patterns relative to BaseURL.
	Paths map[string][]string

	// AllowJS includes .js/.jsx files in the project file set.
	AllowJS bool
}

// Host is what the core asks of the semantic engine.
type Host interface {
	// ExtractDependencies scans file text for imports and references.
	ExtractDependencies(text string) Dependencies

	// ResolveModule maps an import specifier appearing in fromPath to the
	// workspace path of the file that satisfies it. The boolean is false for
	// unresolved specifiers, which callers skip: those may be ambient modules
	// satisfied by global declaration files.
	ResolveModule(specifier, fromPath string, opts CompilerOptions) (string, bool)

	// Materialize adds a file to the engine's active file set.
	Materialize(path string)

	// Compiled reports whether path is already part of the active file set,
	// so callers avoid re-adding files.
	Compiled(path string) bool
}
