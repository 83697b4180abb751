package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/serialmon/internal/errors"
)

const (
	pidPrefix = "serialmon"
	pidExt    = ".pid"
)

// File is a PID lock for one capture source, so that two instances never
// read the same port.
type File struct {
	path string
}

// New returns the PID file for source in dir. An empty dir means the
// system temp directory.
func New(dir, source string) *File {
	if dir == "" {
		dir = os.TempDir()
	}

	name := pidPrefix
	if s := sanitize(source); s != "" {
		name += "-" + s
	}

	return &File{path: filepath.Join(dir, name+pidExt)}
}

func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID to the PID file. It fails with
// ErrAlreadyRunning when the file names a live process; stale or
// unreadable files are replaced.
func (f *File) Write() error {
	errFactory := errors.New()

	if bytes, err := os.ReadFile(f.path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && running(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{
				PID:  pid,
				Path: f.path,
			})
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func running(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}

// sanitize turns a port name such as /dev/ttyUSB0 into ttyUSB0.
func sanitize(source string) string {
	source = strings.TrimPrefix(source, "/dev/")

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, source)
}
