package challenge

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ctfpack/ctfpack/internal/archive"
	"github.com/ctfpack/ctfpack/internal/config"
)

type fileSpec struct {
	File string `yaml:"file"`
	As   string `yaml:"as"`
}

// addFileAsset is the built-in "file" source: one file from the challenge
// directory, published under an explicit name.
func (c *Challenge) addFileAsset(tx Transaction, spec *yaml.Node) error {
	var fs fileSpec
	if err := spec.Decode(&fs); err != nil {
		return fmt.Errorf("file spec: %s: %w", err, config.ErrInvalid)
	}
	if fs.File == "" || fs.As == "" {
		return fmt.Errorf("file spec: file and as are required: %w", config.ErrInvalid)
	}
	return tx.AddFile(fs.As, filepath.Join(c.Root, filepath.FromSlash(fs.File)))
}

type zipSpec struct {
	Files      []string             `yaml:"files"`
	Base       string               `yaml:"base"`
	Exclude    []string             `yaml:"exclude"`
	Additional []archive.Additional `yaml:"additional"`
	As         string               `yaml:"as"`
}

// addZipAsset is the built-in "zip" source: a deterministic archive built
// from include globs under an optional base subdirectory.
func (c *Challenge) addZipAsset(tx Transaction, spec *yaml.Node) error {
	var zs zipSpec
	if err := spec.Decode(&zs); err != nil {
		return fmt.Errorf("zip spec: %s: %w", err, config.ErrInvalid)
	}
	if zs.As == "" {
		return fmt.Errorf("zip spec: as is required: %w", config.ErrInvalid)
	}
	if len(zs.Files) == 0 {
		return fmt.Errorf("zip spec %q: files is required: %w", zs.As, config.ErrInvalid)
	}
	base := c.Root
	if zs.Base != "" {
		base = filepath.Join(c.Root, filepath.FromSlash(zs.Base))
	}
	var matcher *archive.Matcher
	if len(zs.Exclude) > 0 {
		var err error
		matcher, err = archive.CompileMatcher(zs.Exclude)
		if err != nil {
			return fmt.Errorf("zip spec %q: %w", zs.As, err)
		}
	}
	payload, mtime, err := archive.Build(base, zs.Files, matcher, zs.Additional)
	if err != nil {
		return fmt.Errorf("zip spec %q: %w", zs.As, err)
	}
	return tx.Add(zs.As, mtime, payload)
}
