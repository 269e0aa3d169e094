// Package store provides a thin bbolt wrapper for airbrief's local archive.
//
// Upstream batches are stored whole: resolution of a NOTAM batch is defined
// over the full snapshot, so the latest batch per location replaces the
// previous one and cross-batch leftovers cannot occur.
//
// Buckets:
//
//	notams   latest NOTAM batch per location, JSON envelope
//	flights  latest flight board per airport and direction, JSON envelope
//	tracks   flushed track segments, msgpack+flate, key <id>/<start ms>
//	_meta    internal: schema version, created_at
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/track"
	"github.com/cmkoo/airbrief/internal/ubikais"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketNOTAMs   = []byte("notams")
	bucketFlights  = []byte("flights")
	bucketTracks   = []byte("tracks")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every user-facing bucket for stats and export.
var AllBuckets = []string{"notams", "flights", "tracks"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketNOTAMs, bucketFlights, bucketTracks, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// NOTAMBatch is the stored snapshot for one location.
type NOTAMBatch struct {
	Location  string         `json:"location"`
	FetchedAt time.Time      `json:"fetched_at"`
	Records   []notam.Record `json:"records"`
}

// PutNOTAMBatch replaces the stored batch for a location, stamping FetchedAt.
func (s *Store) PutNOTAMBatch(location string, records []notam.Record) error {
	location = strings.ToUpper(strings.TrimSpace(location))
	if location == "" {
		return fmt.Errorf("location is required")
	}
	envelope := NOTAMBatch{
		Location:  location,
		FetchedAt: time.Now().UTC(),
		Records:   records,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding notam batch: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNOTAMs).Put([]byte(location), b)
	})
}

// GetNOTAMBatch retrieves the stored batch for a location.
// Returns (batch, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetNOTAMBatch(location string) (NOTAMBatch, bool, error) {
	location = strings.ToUpper(strings.TrimSpace(location))
	var envelope NOTAMBatch
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNOTAMs).Get([]byte(location))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &envelope)
	})
	if err != nil {
		return NOTAMBatch{}, false, err
	}
	return envelope, envelope.Location != "", nil
}

// Locations lists locations with a stored batch, in key order.
func (s *Store) Locations() ([]string, error) {
	var locations []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNOTAMs).ForEach(func(k, v []byte) error {
			locations = append(locations, string(k))
			return nil
		})
	})
	return locations, err
}

// AllNOTAMBatches returns every stored batch, location-sorted.
func (s *Store) AllNOTAMBatches() ([]NOTAMBatch, error) {
	var batches []NOTAMBatch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNOTAMs).ForEach(func(k, v []byte) error {
			var b NOTAMBatch
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("decoding batch %s: %w", k, err)
			}
			batches = append(batches, b)
			return nil
		})
	})
	return batches, err
}

// FlightBoard is the stored snapshot of one side of an aerodrome's board.
type FlightBoard struct {
	Airport   string            `json:"airport"`
	Direction ubikais.Direction `json:"direction"`
	FetchedAt time.Time         `json:"fetched_at"`
	Flights   []ubikais.Flight  `json:"flights"`
}

func flightKey(airport string, dir ubikais.Direction) []byte {
	return []byte(airport + "/" + string(dir))
}

// PutFlightBoard replaces the stored board for an airport side.
func (s *Store) PutFlightBoard(airport string, dir ubikais.Direction, flights []ubikais.Flight) error {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	if airport == "" {
		return fmt.Errorf("airport is required")
	}
	envelope := FlightBoard{
		Airport:   airport,
		Direction: dir,
		FetchedAt: time.Now().UTC(),
		Flights:   flights,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding flight board: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlights).Put(flightKey(airport, dir), b)
	})
}

// GetFlightBoard retrieves the stored board for an airport side.
func (s *Store) GetFlightBoard(airport string, dir ubikais.Direction) (FlightBoard, bool, error) {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	var envelope FlightBoard
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFlights).Get(flightKey(airport, dir))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &envelope)
	})
	if err != nil {
		return FlightBoard{}, false, err
	}
	return envelope, envelope.Airport != "", nil
}

// AllFlightBoards returns every stored board, in key order.
func (s *Store) AllFlightBoards() ([]FlightBoard, error) {
	var boards []FlightBoard
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlights).ForEach(func(k, v []byte) error {
			var b FlightBoard
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("decoding board %s: %w", k, err)
			}
			boards = append(boards, b)
			return nil
		})
	})
	return boards, err
}

// trackKey builds the segment key. Zero-padding keeps segments of one
// aircraft in time order under bbolt's byte-sorted cursor.
func trackKey(id string, startMs int64) []byte {
	return []byte(fmt.Sprintf("%s/%013d", id, startMs))
}

// AppendTrackSegment stores one flushed segment of points for an aircraft.
// Empty segments are ignored.
func (s *Store) AppendTrackSegment(id string, points []track.Point) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("track id is required")
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("track id must not contain '/'")
	}
	if len(points) == 0 {
		return nil
	}
	blob, err := encodeSegment(points)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTracks).Put(trackKey(id, points[0].TimestampMs()), blob)
	})
}

// TrackHistory returns all stored points for an aircraft, segments
// concatenated in key (time) order. A missing id yields an empty slice.
func (s *Store) TrackHistory(id string) ([]track.Point, error) {
	prefix := []byte(strings.TrimSpace(id) + "/")
	var points []track.Point
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTracks).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			segment, err := decodeSegment(v)
			if err != nil {
				return fmt.Errorf("decoding segment %s: %w", k, err)
			}
			points = append(points, segment...)
		}
		return nil
	})
	return points, err
}

// TrackIDs lists aircraft with stored history, in key order.
func (s *Store) TrackIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTracks).ForEach(func(k, v []byte) error {
			id, _, ok := strings.Cut(string(k), "/")
			if !ok {
				return nil
			}
			if n := len(ids); n == 0 || ids[n-1] != id {
				ids = append(ids, id)
			}
			return nil
		})
	})
	return ids, err
}

// DeleteTrack removes all stored segments for an aircraft.
func (s *Store) DeleteTrack(id string) error {
	prefix := []byte(strings.TrimSpace(id) + "/")
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTracks)
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// BucketStats holds entry count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns entry counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var size int64
			_ = b.ForEach(func(k, v []byte) error {
				count++
				size += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: size})
		}
		return nil
	})
	return stats, err
}
