package fs

import (
	"errors"
	"os"
	"path/filepath"
)

// Staged is a file written under target+suffix and renamed over target on
// Commit. Readers of target never see a partial file.
type Staged struct {
	fsys   FileSystem
	f      File
	tmp    string
	target string
	done   bool
}

// Stage creates the parent directories of target and opens the temporary
// file, truncating leftovers of an earlier failed attempt.
func Stage(fsys FileSystem, target, suffix string) (*Staged, error) {
	if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	tmp := target + suffix
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Staged{fsys: fsys, f: f, tmp: tmp, target: target}, nil
}

// Target is the final path.
func (s *Staged) Target() string { return s.target }

func (s *Staged) Write(p []byte) (int, error) {
	if s.done {
		return 0, os.ErrClosed
	}
	return s.f.Write(p)
}

// Sync flushes the temporary file.
func (s *Staged) Sync() error {
	if s.done {
		return os.ErrClosed
	}
	return s.f.Sync()
}

// Commit syncs, closes and renames the file into place. On failure the
// temporary file is removed and target is left untouched.
func (s *Staged) Commit() error {
	if s.done {
		return os.ErrClosed
	}
	s.done = true

	err := s.f.Sync()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.fsys.Rename(s.tmp, s.target)
	}
	if err != nil {
		return errors.Join(err, s.removeTemp())
	}
	return nil
}

// Discard drops the temporary file. It is a no-op after Commit.
func (s *Staged) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.f.Close()
	return s.removeTemp()
}

func (s *Staged) removeTemp() error {
	if err := s.fsys.Remove(s.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
