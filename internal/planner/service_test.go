package planner

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yegors/mission-planner/internal/drag"
	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
	"github.com/yegors/mission-planner/internal/qgc"
	"github.com/yegors/mission-planner/internal/stats"
	"github.com/yegors/mission-planner/internal/storage/sqlite"
	"github.com/yegors/mission-planner/pkg/logger"
)

const (
	originLat = 18.52789
	originLon = 73.85223
)

var _ drag.MissionStore = (*Service)(nil)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func (b *recordingBroadcaster) BroadcastEvent(messageType string, data map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, messageType)
	b.last = data
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type memRecorder struct {
	records []*sqlite.ExportRecord
}

func (r *memRecorder) SaveExport(_ context.Context, rec *sqlite.ExportRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingBroadcaster) {
	t.Helper()
	frame, err := geo.NewFrame(originLat, originLon)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	s := NewService(Config{
		Frame:           frame,
		Params:          stats.DefaultParams(),
		DefaultAltitude: 5,
		MissionName:     "test",
	}, logger.NewNop())
	b := &recordingBroadcaster{}
	s.SetBroadcaster(b)
	return s, b
}

func buildMission(t *testing.T, s *Service) {
	t.Helper()
	cmds := []mission.Command{
		mission.Takeoff{Lat: originLat, Lon: originLon, Alt: 5},
		mission.Waypoint{Lat: 18.528, Lon: 73.8523, Alt: 5, Speed: mission.Float(10)},
		mission.Land{},
	}
	for _, c := range cmds {
		if _, err := s.Append(c); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestMutationsBroadcast(t *testing.T) {
	s, b := newTestService(t)
	buildMission(t, s)
	if b.count() != 3 {
		t.Fatalf("got %d broadcasts, want 3", b.count())
	}

	if err := s.MoveTo(1, 2); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if err := s.UpdateCommand(2, mission.Patch{Alt: mission.Float(12)}); err != nil {
		t.Fatalf("UpdateCommand: %v", err)
	}
	if b.count() != 5 {
		t.Fatalf("got %d broadcasts, want 5", b.count())
	}

	snap, ok := b.last["mission"].(Snapshot)
	if !ok {
		t.Fatalf("broadcast payload %T", b.last["mission"])
	}
	if snap.Valid || snap.Validation != mission.ErrMustEndWithLandOrRTH {
		t.Fatalf("expected must-end-with-land validation, got %+v", snap.Validation)
	}
}

func TestRejectedMutationKeepsMissionAndDoesNotBroadcast(t *testing.T) {
	s, b := newTestService(t)
	buildMission(t, s)
	before := b.count()

	if err := s.RemoveAt(10); !errors.Is(err, mission.ErrIndexOutOfRange) {
		t.Fatalf("RemoveAt error = %v", err)
	}
	if err := s.SetAllWaypointAltitudes(math.Inf(-1)); !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("SetAllWaypointAltitudes error = %v", err)
	}
	if b.count() != before {
		t.Fatal("rejected change was broadcast")
	}
	if s.Mission().Len() != 3 {
		t.Fatal("rejected change altered the mission")
	}
}

func TestExportQGCRequiresValidMission(t *testing.T) {
	s, _ := newTestService(t)
	rec := &memRecorder{}
	s.SetExportRecorder(rec)

	if _, err := s.ExportQGC(context.Background()); !errors.Is(err, mission.ErrEmptyMission) {
		t.Fatalf("error = %v, want ErrEmptyMission", err)
	}

	buildMission(t, s)
	text, err := s.ExportQGC(context.Background())
	if err != nil {
		t.Fatalf("ExportQGC: %v", err)
	}
	if !strings.HasPrefix(text, qgc.Header+"\n") {
		t.Fatalf("unexpected export:\n%s", text)
	}
	if len(rec.records) != 1 || rec.records[0].Format != sqlite.FormatQGC || rec.records[0].CommandCount != 3 {
		t.Fatalf("export not recorded: %+v", rec.records)
	}
}

func TestImportQGCIsAtomic(t *testing.T) {
	s, _ := newTestService(t)
	buildMission(t, s)
	text, err := s.ExportQGC(context.Background())
	if err != nil {
		t.Fatalf("ExportQGC: %v", err)
	}

	broken := text + "4\t0\t3\t16\t0\t0\t0\n"
	if _, err := s.ImportQGC(broken); !errors.Is(err, qgc.ErrMalformedRecord) {
		t.Fatalf("error = %v, want ErrMalformedRecord", err)
	}
	if s.Mission().Len() != 3 {
		t.Fatal("failed import changed the mission")
	}

	s.Clear()
	if s.Mission().Len() != 0 {
		t.Fatal("Clear left commands behind")
	}
	m, err := s.ImportQGC(text)
	if err != nil {
		t.Fatalf("ImportQGC: %v", err)
	}
	if m.Len() != 3 || s.Validate() != nil {
		t.Fatalf("imported mission len %d, validate %v", m.Len(), s.Validate())
	}
}

func TestStatsAndLegs(t *testing.T) {
	s, _ := newTestService(t)
	buildMission(t, s)

	st := s.Stats()
	if st.DistanceMeters <= 10 || st.TimeSeconds <= 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if legs := s.Legs(); len(legs) != 1 {
		t.Fatalf("got %d legs, want 1", len(legs))
	}
}

func TestSetOrigin(t *testing.T) {
	s, b := newTestService(t)
	before := b.count()

	frame, err := s.SetOrigin(51.4775, -0.4614)
	if err != nil {
		t.Fatalf("SetOrigin: %v", err)
	}
	if frame.Zoom != geo.DefaultZoom || s.Frame() != frame {
		t.Fatalf("frame not stored: %+v", frame)
	}
	if b.count() != before+1 {
		t.Fatal("origin change not broadcast")
	}
	if _, err := s.SetOrigin(89.5, 0); !errors.Is(err, geo.ErrPoleProximity) {
		t.Fatalf("error = %v, want ErrPoleProximity", err)
	}
}

func TestDragEditsServiceMission(t *testing.T) {
	s, b := newTestService(t)
	buildMission(t, s)
	before := b.count()

	bus := drag.NewBus()
	c := drag.NewController(s, bus, logger.NewNop())
	cam := drag.Camera{
		Position: geo.Vec3{0, 200, 0},
		Target:   geo.Vec3{},
		Up:       geo.Vec3{0, 0, -1},
		FOV:      60,
		Aspect:   1,
	}
	if _, err := c.Begin(1, drag.LockAltitudeOnly, cam); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	bus.Emit(drag.Event{Kind: drag.PointerMove, X: 0.2, Y: 0.2})
	bus.Emit(drag.Event{Kind: drag.PointerUp})

	cmd, _ := s.Mission().At(1)
	wp := cmd.(mission.Waypoint)
	if wp.Alt != 5 {
		t.Fatalf("altitude changed to %f", wp.Alt)
	}
	if b.count() != before+1 {
		t.Fatalf("got %d broadcasts during drag, want 1", b.count()-before)
	}
	if bus.Len() != 0 {
		t.Fatal("drag listener leaked")
	}
}

// gatedBroadcaster blocks the first broadcast until release is closed
type gatedBroadcaster struct {
	entered chan struct{}
	release chan struct{}

	mu        sync.Mutex
	calls     int
	snapshots []Snapshot
}

func (b *gatedBroadcaster) BroadcastEvent(_ string, data map[string]any) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.entered)
		<-b.release
	}
	b.mu.Lock()
	b.snapshots = append(b.snapshots, data["mission"].(Snapshot))
	b.mu.Unlock()
}

func TestBroadcastsFollowCommitOrder(t *testing.T) {
	s, _ := newTestService(t)
	b := &gatedBroadcaster{entered: make(chan struct{}), release: make(chan struct{})}
	s.SetBroadcaster(b)

	first := make(chan error, 1)
	go func() {
		_, err := s.Append(mission.Takeoff{Lat: originLat, Lon: originLon, Alt: 5})
		first <- err
	}()
	<-b.entered

	second := make(chan error, 1)
	go func() {
		_, err := s.Append(mission.Land{})
		second <- err
	}()
	// give the second writer time to commit behind the held broadcast
	time.Sleep(50 * time.Millisecond)
	close(b.release)

	for _, ch := range []chan error{first, second} {
		if err := <-ch; err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.snapshots) != 2 {
		t.Fatalf("got %d broadcasts, want 2", len(b.snapshots))
	}
	var lengths []int
	for i, snap := range b.snapshots {
		lengths = append(lengths, snap.Commands.Len())
		if i > 0 && snap.Revision <= b.snapshots[i-1].Revision {
			t.Fatalf("revision went from %d to %d", b.snapshots[i-1].Revision, snap.Revision)
		}
	}
	if lengths[0] != 1 || lengths[1] != 2 {
		t.Fatalf("clients saw lengths in order %v, want [1 2]", lengths)
	}
	if last := b.snapshots[1]; last.Revision != s.Snapshot().Revision {
		t.Fatalf("last broadcast revision %d, service at %d", last.Revision, s.Snapshot().Revision)
	}
}

func TestRevisionCountsCommittedChanges(t *testing.T) {
	s, _ := newTestService(t)
	if r := s.Snapshot().Revision; r != 0 {
		t.Fatalf("fresh service revision = %d", r)
	}
	buildMission(t, s)
	if err := s.RemoveAt(10); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := s.SetOrigin(51.4775, -0.4614); err != nil {
		t.Fatalf("SetOrigin: %v", err)
	}
	if r := s.Snapshot().Revision; r != 4 {
		t.Fatalf("revision = %d, want 4 (three appends and an origin change)", r)
	}
}

func TestUpdateCommandIfChecksCurrentCommand(t *testing.T) {
	s, b := newTestService(t)
	buildMission(t, s)
	before := b.count()

	onlyWaypoints := func(c mission.Command) error {
		if c.Kind() != mission.KindWaypoint {
			return drag.ErrCommandMoved
		}
		return nil
	}
	if _, err := s.UpdateCommandIf(0, onlyWaypoints, mission.Patch{Alt: mission.Float(9)}); !errors.Is(err, drag.ErrCommandMoved) {
		t.Fatalf("error = %v, want ErrCommandMoved", err)
	}
	if b.count() != before {
		t.Fatal("refused update was broadcast")
	}

	updated, err := s.UpdateCommandIf(1, onlyWaypoints, mission.Patch{Alt: mission.Float(9)})
	if err != nil {
		t.Fatalf("UpdateCommandIf: %v", err)
	}
	if wp := updated.(mission.Waypoint); wp.Alt != 9 || wp.Seq != 1 {
		t.Fatalf("updated = %+v", wp)
	}
}

func TestImportQGCDoesNotValidate(t *testing.T) {
	s, _ := newTestService(t)
	text := qgc.Header + "\n" +
		"0\t1\t0\t16\t0\t0\t0\t0\t18.52789\t73.85223\t5\t1\n" +
		"1\t0\t3\t16\t0\t0\t0\t0\t18.528\t73.8523\t5\t1\n"

	m, err := s.ImportQGC(text)
	if err != nil {
		t.Fatalf("ImportQGC: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("imported %d commands, want 1", m.Len())
	}
	if snap := s.Snapshot(); snap.Valid || snap.Validation != mission.ErrMustStartWithTakeoff {
		t.Fatalf("snapshot validation = %+v", snap.Validation)
	}
}
