package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by a Fault without its own Err.
var ErrInjected = errors.New("fs: injected fault")

// Op selects the operations a Fault breaks.
type Op uint8

const (
	OpWrite Op = 1 << iota
	OpSync
	OpClose
	OpRename
)

// Fault breaks the operations in Ops. A write fault lets the first
// AfterBytes bytes through.
type Fault struct {
	Ops        Op
	AfterBytes int64
	Err        error
}

func (f Fault) has(op Op) bool { return f.Ops&op != 0 }

func (f Fault) error() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// Faulty wraps a FileSystem and fails operations on paths containing a
// registered pattern.
type Faulty struct {
	base FileSystem

	mu     sync.Mutex
	faults map[string]Fault
}

// NewFaulty wraps base, or OS when base is nil.
func NewFaulty(base FileSystem) *Faulty {
	if base == nil {
		base = OS
	}
	return &Faulty{base: base, faults: make(map[string]Fault)}
}

// Inject registers f for paths containing pattern.
func (y *Faulty) Inject(pattern string, f Fault) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.faults[pattern] = f
}

func (y *Faulty) lookup(name string, op Op) (Fault, bool) {
	y.mu.Lock()
	defer y.mu.Unlock()
	for pattern, f := range y.faults {
		if f.has(op) && strings.Contains(name, pattern) {
			return f, true
		}
	}
	return Fault{}, false
}

func (y *Faulty) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := y.base.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: f, fs: y, name: name}, nil
}

func (y *Faulty) Rename(oldpath, newpath string) error {
	if f, ok := y.lookup(oldpath, OpRename); ok {
		return f.error()
	}
	return y.base.Rename(oldpath, newpath)
}

func (y *Faulty) ReadFile(name string) ([]byte, error)      { return y.base.ReadFile(name) }
func (y *Faulty) Stat(name string) (os.FileInfo, error)     { return y.base.Stat(name) }
func (y *Faulty) MkdirAll(p string, perm os.FileMode) error { return y.base.MkdirAll(p, perm) }
func (y *Faulty) Remove(name string) error                  { return y.base.Remove(name) }

type faultyFile struct {
	File
	fs      *Faulty
	name    string
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if f, ok := ff.fs.lookup(ff.name, OpWrite); ok && ff.written+int64(len(p)) > f.AfterBytes {
		return 0, f.error()
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if f, ok := ff.fs.lookup(ff.name, OpSync); ok {
		return f.error()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	if f, ok := ff.fs.lookup(ff.name, OpClose); ok {
		return f.error()
	}
	return err
}
