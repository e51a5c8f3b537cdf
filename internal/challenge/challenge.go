// Package challenge implements the asset packaging pipeline for one
// challenge: loading its configuration, resolving its provide entries
// through the asset source registry, and assembling the resulting
// artifacts into a single store transaction.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ctfpack/ctfpack/internal/config"
	"github.com/ctfpack/ctfpack/internal/render"
)

// ErrUnknownKind is wrapped by the error returned when a provide entry
// references an asset source kind that is not registered.
var ErrUnknownKind = errors.New("unknown asset source kind")

// Transaction is the store-side accumulator challenges publish artifacts
// into. Implementations reject duplicate destination names.
type Transaction interface {
	Add(name string, mtime time.Time, payload []byte) error
	AddFile(name string, path string) error
	Commit(ctx context.Context) error
}

// TransactionFactory opens a transaction scoped to one challenge's asset
// namespace.
type TransactionFactory func(challengeID string) (Transaction, error)

// SourceFunc turns one provide entry's spec into artifacts on the
// transaction. The spec is handed over undecoded so custom sources can
// define their own spec shapes.
type SourceFunc func(tx Transaction, spec *yaml.Node) error

// Challenge is one loaded challenge. Construct it with a Loader.
type Challenge struct {
	// Root is the challenge directory; provide paths resolve against it.
	Root string
	// Config is the typed configuration, with project defaults applied.
	Config *config.Challenge
	// Context holds per-challenge overrides merged last into the
	// description template context.
	Context map[string]any

	transactions TransactionFactory
	sources      map[string]SourceFunc
	projectRoot  string
}

// Loader loads challenges and wires them to the asset store. The
// transaction factory is injected here; challenges never reach into
// ambient process state.
type Loader struct {
	transactions TransactionFactory
	defaults     map[string]any
	projectRoot  string
}

// NewLoader returns a Loader producing challenges that publish through
// transactions from factory. defaults is deep-merged underneath every
// challenge config; projectRoot anchors RelativePath and may be empty.
func NewLoader(factory TransactionFactory, defaults map[string]any, projectRoot string) *Loader {
	return &Loader{transactions: factory, defaults: defaults, projectRoot: projectRoot}
}

// Load loads the challenge rooted at dir. The directory must contain a
// challenge config file.
func (l *Loader) Load(dir string) (*Challenge, error) {
	cfgPath, err := config.FindChallengeFile(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadChallenge(cfgPath, l.defaults)
	if err != nil {
		return nil, err
	}
	c := &Challenge{
		Root:         dir,
		Config:       cfg,
		Context:      make(map[string]any),
		transactions: l.transactions,
		sources:      make(map[string]SourceFunc),
		projectRoot:  l.projectRoot,
	}
	c.RegisterAssetSource("file", c.addFileAsset)
	c.RegisterAssetSource("zip", c.addZipAsset)
	return c, nil
}

// RegisterAssetSource registers fn as the handler for provide entries of
// the given kind. Registering an existing kind replaces its handler; this
// is the extension point for consumers with custom asset kinds.
func (c *Challenge) RegisterAssetSource(kind string, fn SourceFunc) {
	c.sources[kind] = fn
}

// CreateTransaction resolves the challenge's provide entries, in declared
// order, into a transaction ready to commit. A challenge without provide
// entries yields an empty transaction. On any error the transaction is
// discarded; no partially-filled transaction is ever returned.
func (c *Challenge) CreateTransaction() (Transaction, error) {
	tx, err := c.transactions(c.Config.ID)
	if err != nil {
		return nil, fmt.Errorf("open transaction for %s: %w", c.Config.ID, err)
	}
	for i, entry := range c.Config.Provide {
		if entry.Kind != "" {
			fn, ok := c.sources[entry.Kind]
			if !ok {
				return nil, fmt.Errorf("provide entry %d: %w %q", i, ErrUnknownKind, entry.Kind)
			}
			if err := fn(tx, entry.Spec); err != nil {
				return nil, fmt.Errorf("provide entry %d (kind %q): %w", i, entry.Kind, err)
			}
			continue
		}
		name := entry.As
		if name == "" {
			name = filepath.Base(entry.File)
		}
		if err := tx.AddFile(name, filepath.Join(c.Root, filepath.FromSlash(entry.File))); err != nil {
			return nil, fmt.Errorf("provide entry %d: %w", i, err)
		}
	}
	return tx, nil
}

// RelativePath returns the challenge's path relative to the project root,
// or its root unchanged when no project root is known.
func (c *Challenge) RelativePath() string {
	if c.projectRoot == "" {
		return c.Root
	}
	rel, err := filepath.Rel(c.projectRoot, c.Root)
	if err != nil {
		return c.Root
	}
	return rel
}

// RenderDescription renders the challenge's description template against
// the challenge config, the exposure shortcuts, and the per-challenge
// context overrides.
func (c *Challenge) RenderDescription() (string, error) {
	context := config.Merge(nil,
		map[string]any{"challenge": c.Config.Raw},
		c.ContextShortcuts(),
		c.Context,
	)
	return render.Render(c.Config.Description, context)
}
