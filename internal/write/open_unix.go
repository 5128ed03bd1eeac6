//go:build unix

package write

import (
	"errors"
	"os"
	"syscall"
)

// openNoFollow opens name for reading, refusing to traverse a final symlink.
func openNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if errors.Is(err, syscall.ELOOP) {
		return nil, ErrSymlink
	}
	return f, err
}
