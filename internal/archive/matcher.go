package archive

import (
	ignore "github.com/sabhiram/go-gitignore"
)

// Matcher answers whether a base-relative path is excluded from an archive.
// Patterns follow the .gitignore wildcard dialect (anchors, **, negation
// with !, trailing-slash directory patterns). A nil Matcher matches nothing.
type Matcher struct {
	spec *ignore.GitIgnore
}

// CompileMatcher compiles exclusion pattern lines into a Matcher. An
// invalid pattern fails here, never silently at match time.
func CompileMatcher(lines []string) (*Matcher, error) {
	return &Matcher{spec: ignore.CompileIgnoreLines(lines...)}, nil
}

// Matches reports whether the slash-separated base-relative path is
// excluded.
func (m *Matcher) Matches(rel string) bool {
	if m == nil || m.spec == nil {
		return false
	}
	return m.spec.MatchesPath(rel)
}
