// Package archive builds deterministic zip archives from a directory tree.
//
// Two builds over an unchanged source tree produce byte-identical output:
// include globs expand in lexical order, entry metadata is normalized
// (files 0644, directories 0775, per-entry timestamps left at the format
// zero value), and compression runs at a fixed level. Filesystem
// timestamps surface only as a single aggregate modification time per
// archive, the change-detection signal for the whole artifact.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/flate"
)

var (
	// ErrBadPattern is wrapped by errors caused by an invalid include glob
	// or exclusion pattern.
	ErrBadPattern = errors.New("invalid pattern")
	// ErrBadEntry is wrapped by errors caused by a malformed synthetic
	// entry.
	ErrBadEntry = errors.New("invalid archive entry")
)

// EpochZero is the aggregate modification time reported for archives
// containing no regular files.
var EpochZero = time.Unix(0, 0).UTC()

// Additional is a synthetic archive entry with embedded content. Exactly
// one of Str or Base64 must be set.
type Additional struct {
	Str    *string `yaml:"str"`
	Base64 *string `yaml:"base64"`
	Path   string  `yaml:"path"`
}

func (a Additional) content() ([]byte, error) {
	switch {
	case a.Str != nil:
		return []byte(*a.Str), nil
	case a.Base64 != nil:
		data, err := base64.StdEncoding.DecodeString(*a.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode base64 for %q: %s: %w", a.Path, err, ErrBadEntry)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("additional entry %q: either str or base64 is required: %w", a.Path, ErrBadEntry)
	}
}

// Build produces an in-memory zip from the files under base selected by
// the include globs, minus paths excluded by the matcher, plus the
// synthetic additional entries. Globs support ** and expand in lexical
// order; a glob matching nothing is an error, since silently skipping it
// would make the artifact depend on accidental file presence. The returned
// time is the maximum modification time over the included regular files
// (EpochZero when there are none); directories and synthetic entries do
// not contribute.
func Build(base string, includes []string, matcher *Matcher, additional []Additional) ([]byte, time.Time, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	b := &builder{
		zw:       zw,
		base:     base,
		matcher:  matcher,
		written:  make(map[string]bool),
		maxMTime: EpochZero,
	}

	fsys := os.DirFS(base)
	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, EpochZero, fmt.Errorf("include glob %q: %w", pattern, ErrBadPattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, EpochZero, fmt.Errorf("expand include glob %q under %s: %w", pattern, base, err)
		}
		if len(matches) == 0 {
			return nil, EpochZero, fmt.Errorf("include glob %q matched nothing under %s: %w", pattern, base, fs.ErrNotExist)
		}
		for _, rel := range matches {
			if err := b.add(rel); err != nil {
				return nil, EpochZero, err
			}
		}
	}

	for _, extra := range additional {
		if extra.Path == "" {
			return nil, EpochZero, fmt.Errorf("additional entry: path is required: %w", ErrBadEntry)
		}
		content, err := extra.content()
		if err != nil {
			return nil, EpochZero, err
		}
		if err := b.writeFile(extra.Path, content); err != nil {
			return nil, EpochZero, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, EpochZero, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), b.maxMTime, nil
}

// builder threads the traversal state explicitly: the aggregate mtime
// accumulator and the set of already-written entry names (overlapping
// globs may reach the same path twice).
type builder struct {
	zw       *zip.Writer
	base     string
	matcher  *Matcher
	written  map[string]bool
	maxMTime time.Time
}

// add writes the entry for the slash-separated base-relative path rel and
// recurses into directories pre-order, directory entries before children.
// Excluded paths are skipped with their whole subtree.
func (b *builder) add(rel string) error {
	if rel == "." {
		return b.addChildren(rel)
	}
	if b.written[rel] || b.matcher.Matches(rel) {
		return nil
	}
	full := filepath.Join(b.base, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("stat %s: %w", full, err)
	}
	switch {
	case info.Mode().IsRegular():
		if mt := info.ModTime(); mt.After(b.maxMTime) {
			b.maxMTime = mt
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read %s: %w", full, err)
		}
		return b.writeFile(rel, data)
	case info.IsDir():
		if err := b.writeDir(rel); err != nil {
			return err
		}
		return b.addChildren(rel)
	default:
		// Sockets, devices, and other irregular files carry no archivable
		// content.
		return nil
	}
}

func (b *builder) addChildren(rel string) error {
	full := filepath.Join(b.base, filepath.FromSlash(rel))
	entries, err := os.ReadDir(full)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", full, err)
	}
	for _, entry := range entries {
		if err := b.add(path.Join(rel, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// writeFile writes a deflate-compressed regular entry with mode 0644 and
// the zero timestamp.
func (b *builder) writeFile(name string, data []byte) error {
	if b.written[name] {
		return nil
	}
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	hdr.SetMode(0o644)
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("write archive entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write archive entry %q: %w", name, err)
	}
	b.written[name] = true
	return nil
}

// writeDir writes an uncompressed directory entry with mode 0775.
func (b *builder) writeDir(name string) error {
	if b.written[name] {
		return nil
	}
	hdr := &zip.FileHeader{Name: name + "/", Method: zip.Store}
	hdr.SetMode(fs.ModeDir | 0o775)
	if _, err := b.zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("write archive entry %q: %w", name, err)
	}
	b.written[name] = true
	return nil
}
