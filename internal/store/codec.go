package store

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/cmkoo/airbrief/internal/track"
)

// encodeSegment encodes a point slice with msgpack and compresses it with
// flate. Segments are written once and read rarely, so the better ratio wins
// over encode speed.
func encodeSegment(points []track.Point) ([]byte, error) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(points); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("flate writer: %w", err)
	}
	if _, err := fw.Write(buf.Bytes()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("flate write: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("flate close: %w", err)
	}
	return compressed.Bytes(), nil
}

// decodeSegment reverses encodeSegment.
func decodeSegment(blob []byte) ([]track.Point, error) {
	fr := flate.NewReader(bytes.NewReader(blob))
	defer fr.Close()

	var decompressed bytes.Buffer
	if _, err := decompressed.ReadFrom(fr); err != nil {
		return nil, fmt.Errorf("flate decompress: %w", err)
	}

	var points []track.Point
	if err := msgpack.NewDecoder(&decompressed).Decode(&points); err != nil {
		return nil, fmt.Errorf("msgpack decode: %w", err)
	}
	return points, nil
}

// exportEnvelope is the container written by Export: every user-facing
// bucket's raw key/value pairs, msgpack-encoded and zstd-compressed.
type exportEnvelope struct {
	Version   int                          `msgpack:"version"`
	CreatedAt time.Time                    `msgpack:"created_at"`
	Buckets   map[string]map[string][]byte `msgpack:"buckets"`
}

// Export writes the archive as a msgpack+zstd container (*.msgpack.zst).
func (s *Store) Export(w io.Writer) error {
	envelope := exportEnvelope{
		Version:   schemaVersion,
		CreatedAt: time.Now().UTC(),
		Buckets:   make(map[string]map[string][]byte, len(AllBuckets)),
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			pairs := make(map[string][]byte)
			if err := b.ForEach(func(k, v []byte) error {
				pairs[string(k)] = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			envelope.Buckets[name] = pairs
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("collecting buckets: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(envelope); err != nil {
		zw.Close()
		return fmt.Errorf("encoding export: %w", err)
	}
	return zw.Close()
}

// Import merges a container written by Export into the archive. Existing
// keys are overwritten; keys absent from the container are left alone.
func (s *Store) Import(r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var envelope exportEnvelope
	if err := msgpack.NewDecoder(zr).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding import: %w", err)
	}
	if envelope.Version > schemaVersion {
		return fmt.Errorf("import schema v%d is newer than supported v%d", envelope.Version, schemaVersion)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for name, pairs := range envelope.Buckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				// Bucket names came from an older or newer layout; skip.
				continue
			}
			for k, v := range pairs {
				if err := b.Put([]byte(k), v); err != nil {
					return fmt.Errorf("importing %s/%s: %w", name, k, err)
				}
			}
		}
		return nil
	})
}
