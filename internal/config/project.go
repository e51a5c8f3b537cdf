// Package config loads project and challenge configuration for ctfpack.
//
// A project is a directory tree marked by a ctfpack.yaml at its root.
// Each challenge lives in its own directory somewhere under the project
// and is described by a challenge.yml, challenge.yaml, or challenge.json
// file. JSON configs are parsed through the YAML decoder (JSON is a
// subset of YAML).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every error caused by malformed configuration,
// as opposed to filesystem failures while reading it.
var ErrInvalid = errors.New("invalid configuration")

// ProjectFileName marks the root of a ctfpack project.
const ProjectFileName = "ctfpack.yaml"

// Project holds project-wide configuration resolved against the project root.
type Project struct {
	Root     string
	AssetDir string
	Defaults map[string]any
}

type fileProject struct {
	AssetDir string         `yaml:"asset_dir"`
	Defaults map[string]any `yaml:"defaults"`
}

// LoadProject reads ctfpack.yaml from root and applies overrides to defaults.
func LoadProject(root string) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	path := filepath.Join(root, ProjectFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config %s: %w", path, err)
	}
	var fileCfg fileProject
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse project config %s: %s: %w", path, err, ErrInvalid)
	}
	proj := &Project{
		Root:     root,
		AssetDir: filepath.Join(root, ".ctfpack", "assets"),
		Defaults: fileCfg.Defaults,
	}
	if fileCfg.AssetDir != "" {
		proj.AssetDir = fileCfg.AssetDir
		if !filepath.IsAbs(proj.AssetDir) {
			proj.AssetDir = filepath.Join(root, fileCfg.AssetDir)
		}
	}
	return proj, nil
}
