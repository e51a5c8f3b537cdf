package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrDuplicateName is wrapped by the error returned when a transaction is
// asked to carry two artifacts under the same destination name.
var ErrDuplicateName = errors.New("duplicate artifact name")

const artifactFilePerms = 0o644

// Artifact describes one artifact staged in a transaction. For file-backed
// artifacts the content hash is computed during Commit, while copying.
type Artifact struct {
	Name      string
	SizeBytes int64
	Sha256    string
	MTime     time.Time
}

type staged struct {
	name    string
	mtime   time.Time
	payload []byte // nil for file-backed entries
	srcPath string
	size    int64
	sha256  string
}

// Transaction is an ordered, append-only batch of artifacts for one
// challenge. It is not safe for concurrent use and must not be reused
// after Commit.
type Transaction struct {
	ctx       *Context
	entries   []staged
	names     map[string]bool
	committed bool
}

// Add stages an in-memory payload under name. mtime is the artifact's
// aggregate modification time as reported by its producer.
func (t *Transaction) Add(name string, mtime time.Time, payload []byte) error {
	if err := t.stageName(name); err != nil {
		return err
	}
	sum := sha256.Sum256(payload)
	t.entries = append(t.entries, staged{
		name:    name,
		mtime:   mtime.UTC(),
		payload: payload,
		size:    int64(len(payload)),
		sha256:  hex.EncodeToString(sum[:]),
	})
	return nil
}

// AddFile stages a copy of the file at path under name. The file is
// stat'ed immediately so a missing source fails the transaction build, not
// the commit; its modification time becomes the artifact mtime.
func (t *Transaction) AddFile(name string, path string) error {
	if err := t.stageName(name); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("add file asset %q: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("add file asset %q: %s is not a regular file", name, path)
	}
	t.entries = append(t.entries, staged{
		name:    name,
		mtime:   info.ModTime().UTC(),
		srcPath: path,
		size:    info.Size(),
	})
	return nil
}

func (t *Transaction) stageName(name string) error {
	if _, err := safeJoin(t.ctx.Dir(), name); err != nil {
		return err
	}
	if t.names[name] {
		return fmt.Errorf("artifact %q: %w", name, ErrDuplicateName)
	}
	t.names[name] = true
	return nil
}

// Artifacts returns the staged artifacts in addition order.
func (t *Transaction) Artifacts() []Artifact {
	out := make([]Artifact, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, Artifact{Name: e.name, SizeBytes: e.size, Sha256: e.sha256, MTime: e.mtime})
	}
	return out
}

// Commit publishes the staged artifacts, replacing the challenge's
// previous asset set: every staged entry is written via a temporary file
// and rename, the index rows are replaced in one database transaction,
// and artifacts from earlier commits that are absent here are removed.
// On failure no temporary files are left behind and the previous contents
// stay in place.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.committed {
		return errors.New("transaction already committed")
	}
	dir := t.ctx.Dir()
	if err := os.MkdirAll(dir, dataDirPerms); err != nil {
		return fmt.Errorf("create challenge asset dir %s: %w", dir, err)
	}

	type pending struct {
		tmp    string
		target string
	}
	var writes []pending
	cleanup := func() {
		for _, w := range writes {
			_ = os.Remove(w.tmp)
		}
	}
	for i := range t.entries {
		e := &t.entries[i]
		target, err := safeJoin(dir, e.name)
		if err != nil {
			cleanup()
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), dataDirPerms); err != nil {
			cleanup()
			return fmt.Errorf("create artifact dir for %q: %w", e.name, err)
		}
		tmp := target + ".tmp-" + randomSuffix()
		if e.payload != nil {
			if err := os.WriteFile(tmp, e.payload, artifactFilePerms); err != nil {
				cleanup()
				return fmt.Errorf("write artifact %q: %w", e.name, err)
			}
		} else {
			sum, size, err := copyFile(e.srcPath, tmp)
			if err != nil {
				cleanup()
				return fmt.Errorf("copy artifact %q from %s: %w", e.name, e.srcPath, err)
			}
			e.sha256 = sum
			e.size = size
		}
		writes = append(writes, pending{tmp: tmp, target: target})
	}

	for _, w := range writes {
		if err := os.Rename(w.tmp, w.target); err != nil {
			cleanup()
			return fmt.Errorf("publish artifact %s: %w", w.target, err)
		}
	}

	records := make([]Record, 0, len(t.entries))
	for _, e := range t.entries {
		records = append(records, Record{
			ChallengeID: t.ctx.id,
			Name:        e.name,
			SizeBytes:   e.size,
			Sha256:      e.sha256,
			MTime:       e.mtime,
		})
	}
	removed, err := t.ctx.m.index.ReplaceAll(ctx, t.ctx.id, records)
	if err != nil {
		return err
	}
	for _, name := range removed {
		stale, err := safeJoin(dir, name)
		if err != nil {
			continue
		}
		_ = os.Remove(stale)
	}
	t.committed = true
	return nil
}

func copyFile(src, dst string) (sum string, size int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, artifactFilePerms)
	if err != nil {
		return "", 0, err
	}
	hash := sha256.New()
	size, err = io.Copy(io.MultiWriter(out, hash), in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
