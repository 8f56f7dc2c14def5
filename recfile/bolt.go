package recfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"
)

var (
	recordsBucket = []byte("records")
	metaBucket    = []byte("meta")
	versionKey    = []byte("version")
	flagsKey      = []byte("flags")
)

type boltStore struct {
	bdb      *bbolt.DB
	path     string
	compress bool
	logger   *slog.Logger
	verbose  bool

	enc    *zstd.Encoder
	dec    *zstd.Decoder
	closed bool
}

func openBolt(path string, opt Options) (Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType

	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if errors.Is(err, bbolt.ErrInvalid) || errors.Is(err, bbolt.ErrChecksum) {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupted, err)
	} else if errors.Is(err, bbolt.ErrVersionMismatch) {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedVersion, err)
	} else if err != nil {
		return nil, fmt.Errorf("recfile: %w", err)
	}

	s := &boltStore{
		bdb:      bdb,
		path:     path,
		compress: opt.Compress,
		logger:   opt.Logger,
		verbose:  opt.Verbose,
	}
	// the decoder is always needed: the file may have been written compressed
	s.dec, err = zstd.NewReader(nil)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	if s.compress {
		s.enc, err = zstd.NewWriter(nil)
		if err != nil {
			bdb.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *boltStore) Path() string { return s.path }

func (s *boltStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dec.Close()
	if s.enc != nil {
		s.enc.Close()
	}
	return s.bdb.Close()
}

func (s *boltStore) ReadAll(fn func(rec []byte) error) error {
	var n int
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		var compressed bool
		if meta := btx.Bucket(metaBucket); meta != nil {
			if v := meta.Get(versionKey); len(v) != 1 || v[0] > version0 {
				return ErrUnsupportedVersion
			}
			if v := meta.Get(flagsKey); len(v) == 2 {
				compressed = (binary.BigEndian.Uint16(v) & flagCompressed) != 0
			}
		}
		buck := btx.Bucket(recordsBucket)
		if buck == nil {
			return nil
		}
		var buf []byte
		c := buck.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec := v
			if compressed {
				var err error
				buf, err = s.dec.DecodeAll(v, buf[:0])
				if err != nil {
					return fmt.Errorf("%w: record %x: %v", ErrCorrupted, k, err)
				}
				rec = buf
			}
			n++
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	if s.verbose {
		s.logger.Debug("recfile: loaded", "file", s.path, "records", n)
	}
	return nil
}

func (s *boltStore) WriteAll(records iter.Seq[[]byte]) error {
	var n int
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		err := btx.DeleteBucket(recordsBucket)
		if err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		buck, err := btx.CreateBucket(recordsBucket)
		if err != nil {
			return err
		}
		buck.FillPercent = 1.0

		meta, err := btx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if err := meta.Put(versionKey, []byte{version0}); err != nil {
			return err
		}
		var flags uint16
		if s.compress {
			flags |= flagCompressed
		}
		if err := meta.Put(flagsKey, binary.BigEndian.AppendUint16(nil, flags)); err != nil {
			return err
		}

		for rec := range records {
			n++
			key := binary.BigEndian.AppendUint64(nil, uint64(n))
			// bolt keeps references to values until commit
			var value []byte
			if s.compress {
				value = s.enc.EncodeAll(rec, nil)
			} else {
				value = append([]byte(nil), rec...)
			}
			if err = buck.Put(key, value); err != nil {
				break
			}
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	if s.verbose {
		s.logger.Debug("recfile: written", "file", s.path, "records", n, "compressed", s.compress)
	}
	return nil
}
