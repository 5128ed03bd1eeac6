// Package resarc reads and writes read-only resource archives: many named,
// optionally compressed resources packed into one file, located by a binary
// search over a sorted entry table and read without loading the whole archive.
//
// # Format
//
// An archive is a 32-byte big-endian header followed by a string pool of
// NUL-terminated names, an entry table of 16-byte records sorted byte-wise by
// name, and the entry payloads. Each record holds the name offset, the payload
// offset, the uncompressed size and the compressed size, where Uncompressed
// marks payloads stored as-is. Only FormatVersion is accepted.
//
// # Reading
//
// Wrap parses an archive already in memory without copying it:
//
//	a, err := resarc.Wrap(buf)
//	if err != nil {
//	    return err
//	}
//	info, err := a.Find("/main/main.collectionc")
//	if err != nil {
//	    return err // errors.Is(err, resarc.ErrNotFound)
//	}
//	out := make([]byte, info.Size)
//	err = a.Read(info, out)
//
// Load opens a file and copies only the header, entry table and string pool
// into memory; payloads are read on demand with positioned reads. LoadMapped
// does the same over a memory mapping and Open accepts any ByteSource, such
// as an HTTP range source from package http wrapped in a block cache from
// package cache.
//
// Find and Read are safe for concurrent use. Names are compared as raw bytes;
// callers are responsible for passing canonical names.
//
// # Errors
//
// Failures wrap the package sentinels (ErrNotFound, ErrVersionMismatch,
// ErrIO, ErrMem, ErrOutbufferTooSmall and others). Code maps an error to the
// numeric Result values used by engine runtimes.
//
// # Writing
//
// Writer builds archives in memory and Create packs a directory:
//
//	f, err := os.Create("game.arc")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	err = resarc.Create(ctx, "build/default", f,
//	    resarc.CreateWithNamePrefix("/"),
//	    resarc.CreateWithSkipCompression(resarc.DefaultSkipCompression(64)),
//	)
package resarc
