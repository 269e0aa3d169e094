package store_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
	"github.com/cmkoo/airbrief/internal/track"
	"github.com/cmkoo/airbrief/internal/ubikais"
)

// testDB opens a fresh isolated database in t.TempDir(). It is closed and
// deleted automatically when the test ends.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeRecord(number, text string) notam.Record {
	return notam.Record{Number: number, Text: text}
}

func fp(v float64) *float64 { return &v }

func makePoint(stampMs, altFt float64) track.Point {
	return track.Point{Lat: 37.55, Lon: 126.79, StampMs: fp(stampMs), AltFt: fp(altFt)}
}

func TestOpenCreatesDB(t *testing.T) {
	s := testDB(t)
	if s.Path() == "" {
		t.Error("Path() should return the db path after open")
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "airbrief.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

func TestPutGetNOTAMBatch(t *testing.T) {
	s := testDB(t)
	records := []notam.Record{
		makeRecord("A1045/24", "A1045/24 NOTAMN B) 2401010000 C) 2406302359"),
		makeRecord("A1100/24", "A1100/24 NOTAMR A1045/24"),
	}

	if err := s.PutNOTAMBatch("RKSS", records); err != nil {
		t.Fatalf("PutNOTAMBatch: %v", err)
	}

	got, found, err := s.GetNOTAMBatch("RKSS")
	if err != nil {
		t.Fatalf("GetNOTAMBatch: %v", err)
	}
	if !found {
		t.Fatal("expected to find RKSS after put")
	}
	if got.Location != "RKSS" {
		t.Errorf("Location: expected RKSS, got %q", got.Location)
	}
	if len(got.Records) != 2 || got.Records[0].Number != "A1045/24" {
		t.Errorf("records came back wrong: %+v", got.Records)
	}
	if got.FetchedAt.IsZero() {
		t.Error("FetchedAt should be stamped")
	}
}

func TestGetNOTAMBatchNormalizesLocation(t *testing.T) {
	s := testDB(t)
	_ = s.PutNOTAMBatch(" rkpc ", []notam.Record{makeRecord("C0001/24", "x")})

	_, found, err := s.GetNOTAMBatch("RKPC")
	if err != nil || !found {
		t.Fatalf("GetNOTAMBatch: err=%v found=%v", err, found)
	}
	if _, found, _ := s.GetNOTAMBatch("rkpc"); !found {
		t.Error("lookup should be case-insensitive")
	}
}

func TestPutNOTAMBatchRequiresLocation(t *testing.T) {
	s := testDB(t)
	if err := s.PutNOTAMBatch("  ", nil); err == nil {
		t.Fatal("expected error for empty location")
	}
}

func TestPutNOTAMBatchOverwrites(t *testing.T) {
	s := testDB(t)
	_ = s.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A1/24", "one"), makeRecord("A2/24", "two")})
	_ = s.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A3/24", "three")})

	got, _, _ := s.GetNOTAMBatch("RKSS")
	if len(got.Records) != 1 || got.Records[0].Number != "A3/24" {
		t.Errorf("expected latest snapshot only, got %+v", got.Records)
	}
}

func TestGetNOTAMBatchNotFound(t *testing.T) {
	s := testDB(t)
	_, found, err := s.GetNOTAMBatch("RKXX")
	if err != nil {
		t.Fatalf("GetNOTAMBatch: %v", err)
	}
	if found {
		t.Error("expected not found for missing location")
	}
}

func TestLocationsSorted(t *testing.T) {
	s := testDB(t)
	for _, loc := range []string{"RKTU", "RKPC", "RKSS"} {
		_ = s.PutNOTAMBatch(loc, []notam.Record{makeRecord("A1/24", "x")})
	}

	locations, err := s.Locations()
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	want := []string{"RKPC", "RKSS", "RKTU"}
	if len(locations) != len(want) {
		t.Fatalf("locations=%v want %v", locations, want)
	}
	for i := range want {
		if locations[i] != want[i] {
			t.Fatalf("locations=%v want %v", locations, want)
		}
	}
}

func TestAllNOTAMBatches(t *testing.T) {
	s := testDB(t)
	_ = s.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A1/24", "x")})
	_ = s.PutNOTAMBatch("RKPC", []notam.Record{makeRecord("C1/24", "y"), makeRecord("C2/24", "z")})

	batches, err := s.AllNOTAMBatches()
	if err != nil {
		t.Fatalf("AllNOTAMBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("batches=%d want 2", len(batches))
	}
	// Key order: RKPC before RKSS.
	if batches[0].Location != "RKPC" || len(batches[0].Records) != 2 {
		t.Errorf("first batch=%+v", batches[0])
	}
}

func TestPutGetFlightBoard(t *testing.T) {
	s := testDB(t)
	deps := []ubikais.Flight{{Callsign: "KAL123", Departure: "RKSS", Arrival: "RKPC"}}
	arrs := []ubikais.Flight{{Callsign: "AAR8904", Departure: "RKPC", Arrival: "RKSS"}}

	if err := s.PutFlightBoard("RKSS", ubikais.Departures, deps); err != nil {
		t.Fatalf("PutFlightBoard: %v", err)
	}
	if err := s.PutFlightBoard("RKSS", ubikais.Arrivals, arrs); err != nil {
		t.Fatalf("PutFlightBoard: %v", err)
	}

	got, found, err := s.GetFlightBoard("rkss", ubikais.Departures)
	if err != nil || !found {
		t.Fatalf("GetFlightBoard: err=%v found=%v", err, found)
	}
	if len(got.Flights) != 1 || got.Flights[0].Callsign != "KAL123" {
		t.Errorf("departures=%+v", got.Flights)
	}

	got, found, _ = s.GetFlightBoard("RKSS", ubikais.Arrivals)
	if !found || got.Flights[0].Callsign != "AAR8904" {
		t.Errorf("arrivals=%+v found=%v", got.Flights, found)
	}
}

func TestGetFlightBoardNotFound(t *testing.T) {
	s := testDB(t)
	_, found, err := s.GetFlightBoard("RKSS", ubikais.Departures)
	if err != nil {
		t.Fatalf("GetFlightBoard: %v", err)
	}
	if found {
		t.Error("expected not found on fresh db")
	}
}

func TestAllFlightBoards(t *testing.T) {
	s := testDB(t)
	_ = s.PutFlightBoard("RKSS", ubikais.Departures, []ubikais.Flight{{Callsign: "A"}})
	_ = s.PutFlightBoard("RKPC", ubikais.Arrivals, []ubikais.Flight{{Callsign: "B"}})

	boards, err := s.AllFlightBoards()
	if err != nil {
		t.Fatalf("AllFlightBoards: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("boards=%d want 2", len(boards))
	}
}

func TestTrackSegmentsConcatenateInTimeOrder(t *testing.T) {
	s := testDB(t)

	// Append the later segment first; key order must still win.
	late := []track.Point{makePoint(2000, 1200), makePoint(3000, 1500)}
	early := []track.Point{makePoint(500, 400), makePoint(1000, 800)}
	if err := s.AppendTrackSegment("71c085", late); err != nil {
		t.Fatalf("AppendTrackSegment: %v", err)
	}
	if err := s.AppendTrackSegment("71c085", early); err != nil {
		t.Fatalf("AppendTrackSegment: %v", err)
	}

	points, err := s.TrackHistory("71c085")
	if err != nil {
		t.Fatalf("TrackHistory: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("points=%d want 4", len(points))
	}
	wantMs := []int64{500, 1000, 2000, 3000}
	for i, p := range points {
		if p.TimestampMs() != wantMs[i] {
			t.Fatalf("point %d ts=%d want %d", i, p.TimestampMs(), wantMs[i])
		}
	}
	if points[0].AltitudeFt() != 400 {
		t.Errorf("altitude round trip=%g want 400", points[0].AltitudeFt())
	}
}

func TestAppendTrackSegmentEmptyIsNoop(t *testing.T) {
	s := testDB(t)
	if err := s.AppendTrackSegment("71c085", nil); err != nil {
		t.Fatalf("AppendTrackSegment(nil): %v", err)
	}
	points, err := s.TrackHistory("71c085")
	if err != nil {
		t.Fatalf("TrackHistory: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("points=%d want 0", len(points))
	}
}

func TestAppendTrackSegmentRejectsSlashID(t *testing.T) {
	s := testDB(t)
	if err := s.AppendTrackSegment("a/b", []track.Point{makePoint(1, 1)}); err == nil {
		t.Fatal("expected error for id containing '/'")
	}
}

func TestTrackIDsAndDelete(t *testing.T) {
	s := testDB(t)
	_ = s.AppendTrackSegment("71c085", []track.Point{makePoint(1000, 500)})
	_ = s.AppendTrackSegment("71c085", []track.Point{makePoint(2000, 900)})
	_ = s.AppendTrackSegment("hl7201", []track.Point{makePoint(1500, 700)})

	ids, err := s.TrackIDs()
	if err != nil {
		t.Fatalf("TrackIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "71c085" || ids[1] != "hl7201" {
		t.Fatalf("ids=%v want [71c085 hl7201]", ids)
	}

	if err := s.DeleteTrack("71c085"); err != nil {
		t.Fatalf("DeleteTrack: %v", err)
	}
	ids, _ = s.TrackIDs()
	if len(ids) != 1 || ids[0] != "hl7201" {
		t.Fatalf("ids after delete=%v want [hl7201]", ids)
	}
	points, _ := s.TrackHistory("hl7201")
	if len(points) != 1 {
		t.Errorf("other track should be intact, points=%d", len(points))
	}
}

func TestPointFlagsSurviveStorage(t *testing.T) {
	s := testDB(t)
	grounded := true
	p := track.Point{Lat: 37.5, Lon: 126.8, StampMs: fp(1000), OnGround: &grounded}
	_ = s.AppendTrackSegment("hl9999", []track.Point{p})

	points, err := s.TrackHistory("hl9999")
	if err != nil {
		t.Fatalf("TrackHistory: %v", err)
	}
	if len(points) != 1 || !points[0].Grounded() {
		t.Fatalf("ground flag lost: %+v", points)
	}
	if points[0].HasAltitude() {
		t.Error("absent altitude should stay absent")
	}
}

func TestStatsCountsEntries(t *testing.T) {
	s := testDB(t)
	_ = s.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A1/24", "x")})
	_ = s.PutFlightBoard("RKSS", ubikais.Departures, []ubikais.Flight{{Callsign: "A"}})
	_ = s.AppendTrackSegment("71c085", []track.Point{makePoint(1, 1)})
	_ = s.AppendTrackSegment("71c085", []track.Point{makePoint(2, 2)})

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	byName := make(map[string]store.BucketStats)
	for _, bs := range stats {
		byName[bs.Name] = bs
	}
	if byName["notams"].Count != 1 || byName["flights"].Count != 1 || byName["tracks"].Count != 2 {
		t.Errorf("stats=%+v", byName)
	}
	if byName["tracks"].Bytes == 0 {
		t.Error("tracks bucket should report nonzero bytes")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := testDB(t)
	_ = src.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A1045/24", "A1045/24 NOTAMN B) 2401010000")})
	_ = src.PutFlightBoard("RKSS", ubikais.Departures, []ubikais.Flight{{Callsign: "KAL123"}})
	_ = src.AppendTrackSegment("71c085", []track.Point{makePoint(1000, 500), makePoint(2000, 900)})

	var container bytes.Buffer
	if err := src.Export(&container); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := testDB(t)
	if err := dst.Import(&container); err != nil {
		t.Fatalf("Import: %v", err)
	}

	batch, found, err := dst.GetNOTAMBatch("RKSS")
	if err != nil || !found {
		t.Fatalf("GetNOTAMBatch after import: err=%v found=%v", err, found)
	}
	if len(batch.Records) != 1 || batch.Records[0].Number != "A1045/24" {
		t.Errorf("imported batch=%+v", batch)
	}

	board, found, _ := dst.GetFlightBoard("RKSS", ubikais.Departures)
	if !found || board.Flights[0].Callsign != "KAL123" {
		t.Errorf("imported board=%+v found=%v", board, found)
	}

	points, err := dst.TrackHistory("71c085")
	if err != nil {
		t.Fatalf("TrackHistory after import: %v", err)
	}
	if len(points) != 2 || points[1].TimestampMs() != 2000 {
		t.Errorf("imported points=%+v", points)
	}
}

func TestImportMergesOverExisting(t *testing.T) {
	src := testDB(t)
	_ = src.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A9/24", "new snapshot")})
	var container bytes.Buffer
	if err := src.Export(&container); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := testDB(t)
	_ = dst.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A1/24", "old snapshot")})
	_ = dst.PutNOTAMBatch("RKPC", []notam.Record{makeRecord("C1/24", "untouched")})

	if err := dst.Import(&container); err != nil {
		t.Fatalf("Import: %v", err)
	}

	batch, _, _ := dst.GetNOTAMBatch("RKSS")
	if len(batch.Records) != 1 || batch.Records[0].Number != "A9/24" {
		t.Errorf("RKSS should be overwritten by import, got %+v", batch.Records)
	}
	if _, found, _ := dst.GetNOTAMBatch("RKPC"); !found {
		t.Error("keys absent from the container must be left alone")
	}
}

func TestImportGarbageFails(t *testing.T) {
	s := testDB(t)
	if err := s.Import(bytes.NewReader([]byte("not a container"))); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestEachTestGetsIsolatedDB(t *testing.T) {
	s1 := testDB(t)
	_ = s1.PutNOTAMBatch("RKSS", []notam.Record{makeRecord("A1/24", "x")})

	s2 := testDB(t)
	_, found, err := s2.GetNOTAMBatch("RKSS")
	if err != nil {
		t.Fatalf("GetNOTAMBatch on s2: %v", err)
	}
	if found {
		t.Error("s2 should not see data written to s1")
	}
}
