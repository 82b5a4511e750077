package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// spoolDir holds in-flight partial files, out of sight of anything
// reading the storage root.
const spoolDir = ".partial"

// LocalStore persists artifacts on the local filesystem. In-flight
// uploads are spooled under <base>/.partial and renamed into place on
// finalize, so the storage root only ever shows complete files.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the storage root and its spool directory.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, spoolDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Open starts the partial file for name, truncating any stale spool a
// crashed or abandoned upload of the same name left behind.
func (s *LocalStore) Open(name string) (PartialFile, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	spool := filepath.Join(s.basePath, spoolDir, name+".part")
	f, err := os.OpenFile(spool, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool file: %w", err)
	}
	return &partialFile{
		file:  f,
		name:  name,
		spool: spool,
		final: filepath.Join(s.basePath, name),
	}, nil
}

// Path returns where the finalized artifact for name lives.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// validateName keeps artifact names inside the storage root. Anything
// that is not a plain base name could escape it via the rename.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("unsafe file name: %q", name)
	}
	if name == spoolDir {
		return fmt.Errorf("reserved file name: %q", name)
	}
	return nil
}

type partialFile struct {
	file  *os.File
	name  string
	spool string
	final string
	size  int64
	done  bool
}

func (p *partialFile) Append(b []byte) (int, error) {
	n, err := p.file.Write(b)
	p.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write spool file: %w", err)
	}
	return n, nil
}

// Finalize flushes the spool and publishes it under the final name.
// The rename is atomic on POSIX filesystems, so readers never observe
// a half-written artifact.
func (p *partialFile) Finalize() error {
	if p.done {
		return fmt.Errorf("partial file already closed")
	}
	p.done = true
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to sync spool file: %w", err)
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("failed to close spool file: %w", err)
	}
	if err := os.Rename(p.spool, p.final); err != nil {
		return fmt.Errorf("failed to publish %s: %w", p.name, err)
	}
	return nil
}

func (p *partialFile) Abort() error {
	if p.done {
		return nil
	}
	p.done = true
	p.file.Close()
	if err := os.Remove(p.spool); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove spool file: %w", err)
	}
	return nil
}

func (p *partialFile) Name() string { return p.name }

func (p *partialFile) Size() int64 { return p.size }
