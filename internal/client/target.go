package client

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Target identifies the filesystem object an operation applies to: a path
// inside a badfs mount, or an already-open file. Implementations carry the
// raw extended-attribute calls; everything above them is shared.
type Target interface {
	// String describes the target for errors and logs.
	String() string

	setxattr(name string, data []byte) error
	getxattr(name string) ([]byte, error)
	removexattr(name string) error
}

// Path targets a filesystem path.
func Path(path string) Target {
	return pathTarget(path)
}

type pathTarget string

func (p pathTarget) String() string { return string(p) }

func (p pathTarget) setxattr(name string, data []byte) error {
	return unix.Setxattr(string(p), name, data, 0)
}

func (p pathTarget) getxattr(name string) ([]byte, error) {
	return readxattr(func(buf []byte) (int, error) {
		return unix.Getxattr(string(p), name, buf)
	})
}

func (p pathTarget) removexattr(name string) error {
	return unix.Removexattr(string(p), name)
}

// File targets an open file inside the mount. The caller keeps ownership
// of the descriptor.
func File(f *os.File) Target {
	return fileTarget{f}
}

type fileTarget struct {
	f *os.File
}

func (t fileTarget) String() string {
	return fmt.Sprintf("%s (fd %d)", t.f.Name(), t.f.Fd())
}

func (t fileTarget) setxattr(name string, data []byte) error {
	return unix.Fsetxattr(int(t.f.Fd()), name, data, 0)
}

func (t fileTarget) getxattr(name string) ([]byte, error) {
	return readxattr(func(buf []byte) (int, error) {
		return unix.Fgetxattr(int(t.f.Fd()), name, buf)
	})
}

func (t fileTarget) removexattr(name string) error {
	return unix.Fremovexattr(int(t.f.Fd()), name)
}

// readxattr fetches a whole attribute value: probe the size with a nil
// buffer, then read. Retries on ERANGE in case the value grew between the
// two calls.
func readxattr(get func(buf []byte) (int, error)) ([]byte, error) {
	for {
		size, err := get(nil)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return nil, nil
		}
		buf := make([]byte, size)
		n, err := get(buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
}
