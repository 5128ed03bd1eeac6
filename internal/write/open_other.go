//go:build !unix

package write

import (
	"io/fs"
	"os"
)

// openNoFollow opens name for reading unless it is a symlink.
// The check and the open are not atomic on these platforms.
func openNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return root.Open(name)
}
