// Package recfile stores snapshot files: whole-file sequences of opaque
// records that are always rewritten at once.
//
// Two backends are provided:
//
//  1. Flat files (the default). The file is rewritten into a sibling
//     temporary file and atomically renamed over the target.
//
//  2. Bolt databases. Records live in a single bucket which is replaced
//     inside one Bolt write transaction.
//
// The sentinel path "/dev/null" (or an empty path) disables the file: reads
// yield no records and writes are discarded.
//
// # Flat file format
//
//   - file = header body
//   - header = magic:64 version:8 pad:8 flags:16 reserved:32 checksum:64
//   - body = record* terminator, zstd-compressed when flagCompressed is set
//   - record = size:uvarint bytes*
//   - terminator = 0:uvarint bodyChecksum:64
//
// All checksums are xxhash64, little-endian.
package recfile

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

const DevNull = "/dev/null"

var (
	ErrCorrupted          = errors.New("corrupted snapshot file")
	ErrUnsupportedVersion = errors.New("unsupported snapshot file version")
)

type Backend int

const (
	BackendFile Backend = iota
	BackendBolt
)

func (b Backend) String() string {
	switch b {
	case BackendFile:
		return "file"
	case BackendBolt:
		return "bolt"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend accepts the names printed by Backend.String.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "file":
		return BackendFile, nil
	case "bolt":
		return BackendBolt, nil
	default:
		return 0, fmt.Errorf("unknown snapshot backend %q", s)
	}
}

type Options struct {
	Backend  Backend
	Compress bool
	Logger   *slog.Logger
	Verbose  bool
}

// Store is a snapshot file.
type Store interface {
	// ReadAll calls fn for each stored record in order. A missing file
	// has no records. Returned record slices are only valid during fn.
	ReadAll(fn func(rec []byte) error) error

	// WriteAll replaces the stored records.
	WriteAll(records iter.Seq[[]byte]) error

	Path() string
	Close() error
}

// Open returns the store for path. It does not touch the file system for
// flat files; Bolt databases are opened (and created) immediately.
func Open(path string, opt Options) (Store, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if path == "" || path == DevNull {
		return nullStore{}, nil
	}
	switch opt.Backend {
	case BackendFile:
		return &fileStore{path: path, compress: opt.Compress, logger: opt.Logger, verbose: opt.Verbose}, nil
	case BackendBolt:
		return openBolt(path, opt)
	default:
		return nil, fmt.Errorf("recfile: unsupported backend %v", opt.Backend)
	}
}

// IsDisabled reports whether s discards everything written to it.
func IsDisabled(s Store) bool {
	_, ok := s.(nullStore)
	return ok
}

type nullStore struct{}

func (nullStore) ReadAll(fn func(rec []byte) error) error { return nil }
func (nullStore) WriteAll(records iter.Seq[[]byte]) error { return nil }
func (nullStore) Path() string                            { return DevNull }
func (nullStore) Close() error                            { return nil }
