package resarc

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meigma/resarc/internal/sizing"
	"github.com/meigma/resarc/internal/write"
)

// Create builds an archive from the regular files below dir and writes it to w.
//
// Entry names are the slash-separated paths relative to dir, prefixed with
// the CreateWithNamePrefix value. Empty directories are not preserved and
// symbolic links are not followed.
//
// Create holds the stored form of every file in memory until the archive is
// written. The context can be used to cancel long-running creation.
func Create(ctx context.Context, dir string, w io.Writer, opts ...CreateOption) error {
	aw := NewWriter(opts...)
	if err := aw.AddDir(ctx, dir); err != nil {
		return err
	}
	_, err := aw.WriteTo(w)
	return err
}

// AddDir adds every regular file below dir, as Create does.
func (w *Writer) AddDir(ctx context.Context, dir string) error {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	strict := w.cfg.changeDetection == ChangeDetectionStrict
	before := w.Len()
	err = write.Walk(ctx, root, strict, func(f write.File, r io.Reader) error {
		if w.cfg.maxFiles > 0 && w.Len() >= w.cfg.maxFiles {
			return fmt.Errorf("%w: limit %d", ErrTooManyFiles, w.cfg.maxFiles)
		}
		n, err := sizing.ToInt(uint64(max(f.Info.Size(), 0)), ErrSizeOverflow)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("read %s: %w", f.Path, err)
		}
		return w.Add(w.cfg.namePrefix+f.Path, data)
	})
	if err != nil {
		return err
	}

	w.cfg.logger.Debug("directory added",
		"dir", dir,
		"files", w.Len()-before,
	)
	return nil
}
