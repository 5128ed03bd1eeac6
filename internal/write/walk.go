package write

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSymlink is returned when a walked path turns out to be a symbolic link.
var ErrSymlink = errors.New("symbolic links not supported")

// File is a regular file visited by Walk.
type File struct {
	// Path is the slash-separated path relative to the walk root.
	Path string

	// Info is the file's metadata taken from the open handle.
	Info fs.FileInfo
}

// VisitFunc receives each regular file with its content limited to Info.Size().
type VisitFunc func(f File, r io.Reader) error

// Walk visits every regular file below root in lexical order.
//
// Symbolic links and other non-regular files are skipped. With strict set,
// Walk verifies that each file is the one the directory listing reported and
// that it did not change while fn consumed it.
func Walk(ctx context.Context, root *os.Root, strict bool, fn VisitFunc) error {
	return fs.WalkDir(root.FS(), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		listed, ok, err := resolve(root, p, d, strict)
		if err != nil || !ok {
			return err
		}
		err = visit(root, p, listed, strict, fn)
		if errors.Is(err, ErrSymlink) {
			return nil
		}
		return err
	})
}

func visit(root *os.Root, p string, listed fs.FileInfo, strict bool, fn VisitFunc) error {
	f, err := openNoFollow(root, filepath.FromSlash(p))
	if err != nil {
		return err
	}
	defer f.Close()

	before, err := f.Stat()
	if err != nil {
		return err
	}
	if !before.Mode().IsRegular() {
		return nil
	}
	if strict && !os.SameFile(listed, before) {
		return fmt.Errorf("file changed during archive creation: %s", p)
	}

	lr := &io.LimitedReader{R: f, N: before.Size()}
	if err := fn(File{Path: p, Info: before}, lr); err != nil {
		return err
	}
	if lr.N != 0 {
		return fmt.Errorf("file shrank during archive creation: %s", p)
	}

	if !strict {
		return nil
	}
	after, err := f.Stat()
	if err != nil {
		return err
	}
	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		return fmt.Errorf("file changed during archive creation: %s", p)
	}
	return nil
}

// resolve filters out symlinks and non-regular files. In strict mode it also
// returns the listed FileInfo so the opened handle can be compared with it.
func resolve(root *os.Root, p string, d fs.DirEntry, strict bool) (fs.FileInfo, bool, error) {
	typ := d.Type()
	if typ&fs.ModeSymlink != 0 {
		return nil, false, nil
	}
	if typ == 0 && !strict {
		return nil, true, nil
	}
	if typ != 0 && !typ.IsRegular() {
		return nil, false, nil
	}

	info, err := root.Lstat(filepath.FromSlash(p))
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	return info, true, nil
}
