//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var madvice = map[AccessPattern]int{
	AccessSequential: unix.MADV_SEQUENTIAL,
	AccessRandom:     unix.MADV_RANDOM,
	AccessWillNeed:   unix.MADV_WILLNEED,
	AccessDontNeed:   unix.MADV_DONTNEED,
}

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osAdvise(span []byte, p AccessPattern) error {
	if len(span) == 0 {
		return nil
	}
	advice, ok := madvice[p]
	if !ok {
		advice = unix.MADV_NORMAL
	}
	// EINVAL only means the kernel refused the hint.
	if err := unix.Madvise(span, advice); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
