package ledger

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// readRange returns bytes [off, off+n) of the file at path.
//
// Finalized files never change again, so they are mapped read-only and
// copied out. Aging files are still being appended to and are read with
// ReadAt so the read never observes a mapping past a concurrent truncate.
func readRange(path string, off, n int64, finalized bool) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < off+n {
		return nil, fmt.Errorf("read %s: size %d below expected %d: %w", path, info.Size(), off+n, io.ErrUnexpectedEOF)
	}

	if finalized {
		data, err := unix.Mmap(int(f.Fd()), 0, int(off+n), unix.PROT_READ, unix.MAP_SHARED)
		if err == nil {
			out := make([]byte, n)
			copy(out, data[off:off+n])
			if err := unix.Munmap(data); err != nil {
				return nil, fmt.Errorf("munmap %s: %w", path, err)
			}
			return out, nil
		}
		// fall through to ReadAt; some filesystems refuse mmap
	}

	out := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(f, off, n), out); err != nil {
		return nil, fmt.Errorf("read %s [%d,+%d): %w", path, off, n, err)
	}
	return out, nil
}
