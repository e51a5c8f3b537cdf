package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// challengeExtensions lists the supported challenge config file extensions,
// in lookup order.
var challengeExtensions = []string{"yml", "yaml", "json"}

// Challenge is the typed view of one challenge's configuration. Raw holds
// the same document as a generic mapping (with project defaults merged in)
// for use as template context.
type Challenge struct {
	ID          string                  `yaml:"id"`
	Name        string                  `yaml:"name"`
	Author      string                  `yaml:"author"`
	Category    string                  `yaml:"category"`
	Description string                  `yaml:"description"`
	Value       int                     `yaml:"value"`
	Provide     []ProvideEntry          `yaml:"provide"`
	Expose      map[string][]ExposeRule `yaml:"expose"`

	Raw map[string]any `yaml:"-"`
}

// ExposeRule maps protocols to endpoint values for one exposure target.
// HTTP is any-typed because configs use both a hostname string and a bare
// boolean flag for it.
type ExposeRule struct {
	TCP  *int   `yaml:"tcp"`
	HTTP any    `yaml:"http"`
	Host string `yaml:"host"`
}

// FindChallengeFile locates the challenge config file in root without
// recursing. The file must be named "challenge" with one of the supported
// extensions.
func FindChallengeFile(root string) (string, error) {
	for _, ext := range challengeExtensions {
		path := filepath.Join(root, "challenge."+ext)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no challenge config found in %s: %w", root, fs.ErrNotExist)
}

// LoadChallenge reads and parses one challenge config file. Project-level
// defaults are deep-merged underneath the challenge's own document, and the
// id defaults to the name of the directory containing the config file.
func LoadChallenge(path string, defaults map[string]any) (*Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read challenge config %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse challenge config %s: %s: %w", path, err, ErrInvalid)
	}
	merged := Merge(nil, defaults, doc)
	if _, ok := merged["id"]; !ok {
		merged["id"] = filepath.Base(filepath.Dir(path))
	}

	// Round-trip the merged document so defaults apply to the typed view.
	mergedYAML, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("re-encode challenge config %s: %w", path, err)
	}
	var cfg Challenge
	if err := yaml.Unmarshal(mergedYAML, &cfg); err != nil {
		return nil, fmt.Errorf("challenge config %s: %s: %w", path, err, ErrInvalid)
	}
	cfg.Raw = merged
	if cfg.ID == "" {
		return nil, fmt.Errorf("challenge config %s: id must not be empty: %w", path, ErrInvalid)
	}
	return &cfg, nil
}

// DiscoverChallenges walks the project tree and returns the directories
// containing a challenge config file, sorted for stable processing order.
// Hidden directories and skipDirs (the asset cache, typically) are pruned.
func DiscoverChallenges(root string, skipDirs ...string) ([]string, error) {
	skip := make(map[string]bool, len(skipDirs))
	for _, dir := range skipDirs {
		skip[filepath.Clean(dir)] = true
	}
	var found []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if path != root && (skip[filepath.Clean(path)] || (len(name) > 1 && name[0] == '.')) {
			return fs.SkipDir
		}
		if _, err := FindChallengeFile(path); err == nil {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover challenges under %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}
