package recfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	magic          = 0x50414e5342555453 // "STUBSNAP" as little-endian uint64
	version0 uint8 = 0

	headerSize    = 3 * 8
	maxRecordSize = 1 << 30
)

const (
	flagCompressed uint16 = 1 << 0
)

type fileHeader struct {
	Magic    uint64
	Version  uint8
	_        uint8
	Flags    uint16
	_        uint32
	Checksum uint64
}

type fileStore struct {
	path     string
	compress bool
	logger   *slog.Logger
	verbose  bool
}

func (s *fileStore) Path() string { return s.path }
func (s *fileStore) Close() error { return nil }

func (s *fileStore) ReadAll(fn func(rec []byte) error) error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()

	fr := bufio.NewReaderSize(f, 64*1024)
	h, err := readHeader(fr)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	var br *bufio.Reader
	if (h.Flags & flagCompressed) != 0 {
		zr, err := zstd.NewReader(fr)
		if err != nil {
			return err
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	} else {
		br = fr
	}

	var n int
	err = readBody(br, func(rec []byte) error {
		n++
		return fn(rec)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	if s.verbose {
		s.logger.Debug("recfile: loaded", "file", s.path, "records", n)
	}
	return nil
}

func readHeader(r io.Reader) (*fileHeader, error) {
	var buf [headerSize]byte
	_, err := io.ReadFull(r, buf[:])
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return nil, ErrCorrupted
	} else if err != nil {
		return nil, err
	}
	h := new(fileHeader)
	n, err := binary.Decode(buf[:], binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}
	if h.Magic != magic {
		return nil, ErrCorrupted
	}
	if xxhash.Sum64(buf[:headerSize-8]) != h.Checksum {
		return nil, ErrCorrupted
	}
	if h.Version > version0 {
		return nil, ErrUnsupportedVersion
	}
	return h, nil
}

func readBody(br *bufio.Reader, fn func(rec []byte) error) error {
	var hash xxhash.Digest
	hash.Reset()
	var hbuf [binary.MaxVarintLen64]byte
	var buf []byte
	for {
		size, err := binary.ReadUvarint(br)
		if err != nil {
			return corrupted(err)
		}
		hash.Write(binary.AppendUvarint(hbuf[:0], size))

		if size == 0 {
			var sum [8]byte
			if _, err := io.ReadFull(br, sum[:]); err != nil {
				return corrupted(err)
			}
			if binary.LittleEndian.Uint64(sum[:]) != hash.Sum64() {
				return ErrCorrupted
			}
			if _, err := br.ReadByte(); err != io.EOF {
				return fmt.Errorf("%w: trailing data", ErrCorrupted)
			}
			return nil
		}
		if size > maxRecordSize {
			return fmt.Errorf("%w: record size %d", ErrCorrupted, size)
		}

		if uint64(cap(buf)) < size {
			buf = make([]byte, size)
		}
		buf = buf[:size]
		if _, err := io.ReadFull(br, buf); err != nil {
			return corrupted(err)
		}
		hash.Write(buf)

		if err := fn(buf); err != nil {
			return err
		}
	}
}

func corrupted(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: truncated", ErrCorrupted)
	}
	return fmt.Errorf("%w: %v", ErrCorrupted, err)
}

func (s *fileStore) WriteAll(records iter.Seq[[]byte]) error {
	dir, base := filepath.Dir(s.path), filepath.Base(s.path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0o644)

	bw := bufio.NewWriterSize(tmp, 64*1024)

	var hbuf [headerSize]byte
	fillHeader(hbuf[:], s.compress)
	if _, err := bw.Write(hbuf[:]); err != nil {
		return err
	}

	var body io.Writer = bw
	var zw *zstd.Encoder
	if s.compress {
		zw, err = zstd.NewWriter(bw)
		if err != nil {
			return err
		}
		body = zw
	}

	n, err := writeBody(body, records)
	if err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := replaceFile(tmpName, s.path); err != nil {
		return err
	}
	tmpName = ""

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	if s.verbose {
		s.logger.Debug("recfile: written", "file", s.path, "records", n, "compressed", s.compress)
	}
	return nil
}

func fillHeader(buf []byte, compressed bool) {
	h := fileHeader{
		Magic:   magic,
		Version: version0,
	}
	if compressed {
		h.Flags |= flagCompressed
	}
	n, err := binary.Encode(buf, binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != headerSize {
		panic("internal size mismatch")
	}
	binary.LittleEndian.PutUint64(buf[headerSize-8:], xxhash.Sum64(buf[:headerSize-8]))
}

func writeBody(w io.Writer, records iter.Seq[[]byte]) (int, error) {
	var hash xxhash.Digest
	hash.Reset()
	var hbuf [binary.MaxVarintLen64]byte
	var n int
	var err error
	for rec := range records {
		if len(rec) == 0 {
			err = errors.New("recfile: empty record")
			break
		}
		h := binary.AppendUvarint(hbuf[:0], uint64(len(rec)))
		hash.Write(h)
		hash.Write(rec)
		if _, err = w.Write(h); err != nil {
			break
		}
		if _, err = w.Write(rec); err != nil {
			break
		}
		n++
	}
	if err != nil {
		return n, err
	}

	var tbuf [1 + 8]byte
	hash.Write(tbuf[:1])
	binary.LittleEndian.PutUint64(tbuf[1:], hash.Sum64())
	_, err = w.Write(tbuf[:])
	return n, err
}

// replaceFile renames from over to. Platforms that refuse to rename over
// an existing file get the target removed first.
func replaceFile(from, to string) error {
	err := os.Rename(from, to)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(to); statErr != nil {
		return err
	}
	if rmErr := os.Remove(to); rmErr != nil {
		return err
	}
	return os.Rename(from, to)
}
