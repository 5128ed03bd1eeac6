package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/resarc"
	"github.com/meigma/resarc/compress"
)

func runPack(ctx context.Context, e *env, args []string) error {
	var (
		verbose  bool
		out      string
		codec    string
		prefix   string
		userdata uint64
		minSize  int64
		maxFiles int
		strict   bool
	)
	fs := newFlagSet(e, "pack", &verbose)
	fs.StringVar(&out, "o", "", "output archive path (required)")
	fs.StringVar(&codec, "codec", "zstd", "payload codec (zstd, lz4, s2, none)")
	fs.StringVar(&prefix, "prefix", "", "prefix added to every entry name, e.g. /")
	fs.Uint64Var(&userdata, "userdata", 0, "opaque header userdata value")
	fs.Int64Var(&minSize, "min-size", 64, "store files smaller than this uncompressed")
	fs.IntVar(&maxFiles, "max-files", 0, "maximum number of entries (0 = default, <0 = unlimited)")
	fs.BoolVar(&strict, "strict", false, "fail if a file changes while it is packed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if out == "" || fs.NArg() != 1 {
		fs.Usage()
		return errors.New("pack needs -o and one directory")
	}
	e.setupLogger(verbose)

	c, err := compress.ByName(codec)
	if err != nil {
		return err
	}
	opts := []resarc.CreateOption{
		resarc.CreateWithCodec(c),
		resarc.CreateWithNamePrefix(prefix),
		resarc.CreateWithUserdata(userdata),
		resarc.CreateWithMaxFiles(maxFiles),
		resarc.CreateWithSkipCompression(resarc.DefaultSkipCompression(minSize)),
		resarc.CreateWithLogger(e.logger),
	}
	if strict {
		opts = append(opts, resarc.CreateWithChangeDetection(resarc.ChangeDetectionStrict))
	}

	f, err := os.Create(out) //nolint:gosec // user-provided output path
	if err != nil {
		return err
	}
	if err := resarc.Create(ctx, fs.Arg(0), f, opts...); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	return f.Close()
}

func runList(ctx context.Context, e *env, args []string) error {
	var (
		rf     readFlags
		prefix string
		long   bool
	)
	fs := newFlagSet(e, "ls", &rf.verbose)
	rf.register(fs)
	fs.StringVar(&prefix, "prefix", "", "only list names starting with prefix")
	fs.BoolVar(&long, "l", false, "show sizes and compression")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("ls needs one archive")
	}
	e.setupLogger(rf.verbose)

	a, err := rf.openArchive(ctx, e, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	if !long {
		for info := range a.EntriesWithPrefix(prefix) {
			fmt.Fprintln(e.stdout, info.Name)
		}
		return nil
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
	for info := range a.EntriesWithPrefix(prefix) {
		stored := "-"
		if info.Compressed() {
			stored = fmt.Sprint(info.CompressedSize)
		}
		fmt.Fprintf(tw, "%d\t%s\t %s\n", info.Size, stored, info.Name)
	}
	return tw.Flush()
}

func runCat(ctx context.Context, e *env, args []string) error {
	var rf readFlags
	fs := newFlagSet(e, "cat", &rf.verbose)
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("cat needs an archive and an entry name")
	}
	e.setupLogger(rf.verbose)

	a, err := rf.openArchive(ctx, e, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.ReadFile(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("%w (code %d)", err, resarc.Code(err))
	}
	_, err = e.stdout.Write(data)
	return err
}

func runExtract(ctx context.Context, e *env, args []string) error {
	var (
		rf   readFlags
		dest string
		jobs int
	)
	fs := newFlagSet(e, "extract", &rf.verbose)
	rf.register(fs)
	fs.StringVar(&dest, "C", ".", "destination directory")
	fs.IntVar(&jobs, "j", 8, "concurrent reads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("extract needs an archive")
	}
	e.setupLogger(rf.verbose)

	a, err := rf.openArchive(ctx, e, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	var infos []resarc.EntryInfo
	if names := fs.Args()[1:]; len(names) > 0 {
		for _, name := range names {
			info, err := a.Find(name)
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
	} else {
		for info := range a.Entries() {
			infos = append(infos, info)
		}
	}

	// Entry names map onto paths lossily ("/a" and "a" are the same file),
	// so targets are resolved up front and collisions refused.
	targets := make([]string, 0, len(infos))
	owners := make(map[string]string, len(infos))
	for _, info := range infos {
		path, err := targetPath(dest, info.Name)
		if err != nil {
			return err
		}
		if prev, ok := owners[path]; ok {
			if prev == info.Name {
				continue
			}
			return fmt.Errorf("entries %q and %q both extract to %s", prev, info.Name, path)
		}
		owners[path] = info.Name
		infos[len(targets)] = info
		targets = append(targets, path)
	}
	infos = infos[:len(targets)]

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, info := range infos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return extractEntry(a, info, targets[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.logger.Debug("extracted", "entries", len(infos), "dest", dest)
	return nil
}

// targetPath returns where the named entry is written below dest. Names
// that would escape dest are refused.
func targetPath(dest, name string) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(name, "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("refusing to extract %q outside the destination", name)
	}
	return filepath.Join(dest, rel), nil
}

// extractEntry writes one entry to path.
func extractEntry(a *resarc.Archive, info resarc.EntryInfo, path string) error {
	data := make([]byte, info.Size)
	if err := a.Read(info, data); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // extracted resources are not secret
}

func runInfo(ctx context.Context, e *env, args []string) error {
	var rf readFlags
	fs := newFlagSet(e, "info", &rf.verbose)
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("info needs one archive")
	}
	e.setupLogger(rf.verbose)

	a, err := rf.openArchive(ctx, e, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	var size, stored uint64
	var compressed int
	for info := range a.Entries() {
		size += uint64(info.Size)
		stored += uint64(info.StoredSize())
		if info.Compressed() {
			compressed++
		}
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "version:\t%d\n", a.Version())
	fmt.Fprintf(tw, "userdata:\t%#x\n", a.Userdata())
	fmt.Fprintf(tw, "entries:\t%d (%d compressed)\n", a.EntryCount(), compressed)
	fmt.Fprintf(tw, "size:\t%d bytes (%d stored)\n", size, stored)
	fmt.Fprintf(tw, "source:\t%s\n", a.Source().SourceID())
	fmt.Fprintf(tw, "digest:\t%s\n", a.Digest())
	return tw.Flush()
}
