// Package assets is the local asset store challenges publish into.
//
// Each challenge owns a namespace (a subdirectory of the store plus its
// rows in the SQLite index); a transaction accumulates the artifacts for
// one challenge and commits them atomically, replacing the namespace's
// previous contents. Artifact bytes land on disk, metadata lands in the
// index for change detection.
package assets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager owns the asset directory and its index database.
type Manager struct {
	dir   string
	index *Index
}

// Open creates the asset directory if needed and opens the index at
// <dir>/assets.db.
func Open(dir string) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("asset dir is required")
	}
	if err := os.MkdirAll(dir, dataDirPerms); err != nil {
		return nil, fmt.Errorf("create asset dir %s: %w", dir, err)
	}
	index, err := OpenIndex(filepath.Join(dir, "assets.db"))
	if err != nil {
		return nil, err
	}
	return &Manager{dir: dir, index: index}, nil
}

// Close releases the index database. Safe on a nil Manager.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	return m.index.Close()
}

// Dir returns the root of the asset store.
func (m *Manager) Dir() string {
	return m.dir
}

// Context scopes the store to one challenge's asset namespace.
func (m *Manager) Context(challengeID string) (*Context, error) {
	if err := validateChallengeID(challengeID); err != nil {
		return nil, err
	}
	return &Context{m: m, id: challengeID}, nil
}

// Context is one challenge's view of the store.
type Context struct {
	m  *Manager
	id string
}

// ID returns the challenge id this context is scoped to.
func (c *Context) ID() string {
	return c.id
}

// Dir returns the directory committed artifacts are written into.
func (c *Context) Dir() string {
	return filepath.Join(c.m.dir, c.id)
}

// Transaction starts an empty transaction for this challenge.
func (c *Context) Transaction() *Transaction {
	return &Transaction{ctx: c, names: make(map[string]bool)}
}

func validateChallengeID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("challenge id is required")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("challenge id %q must be a plain directory name", id)
	}
	return nil
}

// safeJoin resolves an artifact name against root and rejects names that
// would escape it.
func safeJoin(root, name string) (string, error) {
	if name == "" {
		return "", errors.New("artifact name is required")
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("artifact name %q escapes the asset directory", name)
	}
	return target, nil
}

func randomSuffix() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "fallback"
	}
	return hex.EncodeToString(buf)
}
