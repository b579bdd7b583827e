// Package drag turns pointer input over a 3D view into constrained edits of
// mission command positions.
package drag

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
	"github.com/yegors/mission-planner/pkg/logger"
)

var (
	// ErrNotDraggable is returned when a drag starts on a command without a position
	ErrNotDraggable = errors.New("command has no position to drag")
	// ErrCommandMoved is returned when the dragged index now holds a different command
	ErrCommandMoved = errors.New("dragged command is no longer at its index")
)

// MissionStore is the mission a controller edits
type MissionStore interface {
	Frame() geo.Frame
	Mission() mission.Mission
	DefaultAltitude() float64
	// UpdateCommandIf applies patch to the command at index if check accepts the
	// command currently there, and returns the updated command. The check and
	// the write happen atomically.
	UpdateCommandIf(index int, check func(mission.Command) error, patch mission.Patch) (mission.Command, error)
}

// State is the gesture state of a controller
type State string

const (
	StateIdle     State = "idle"
	StateDragging State = "dragging"
)

// Status describes the controller after a transition
type Status struct {
	State     State    `json:"state"`
	GestureID string   `json:"gesture_id,omitempty"`
	Index     int      `json:"index"`
	Lock      LockMode `json:"lock,omitempty"`
	// Reason is the event that ended the last gesture
	Reason string `json:"reason,omitempty"`
}

type gesture struct {
	id     uuid.UUID
	index  int
	lock   LockMode
	camera Camera
	point  geo.Vec3
	stop   func()

	// the dragged command as last written
	command mission.Command
}

// owns reports whether c is still the command this gesture is dragging
func (g *gesture) owns(c mission.Command) error {
	if c.Kind() != g.command.Kind() {
		return ErrCommandMoved
	}
	lat, lon, alt, _ := mission.Position(c)
	wantLat, wantLon, wantAlt, _ := mission.Position(g.command)
	if lat != wantLat || lon != wantLon || alt != wantAlt {
		return ErrCommandMoved
	}
	return nil
}

// Controller runs one drag gesture at a time: Idle -> Dragging -> Idle.
// While dragging it listens on its EventSource; every way out of Dragging
// (pointer up, pointer cancel, focus loss, Close) removes that listener.
type Controller struct {
	store  MissionStore
	source EventSource
	logger *logger.Logger

	mu       sync.Mutex
	active   *gesture
	onChange func(Status)
}

// NewController creates an idle controller
func NewController(store MissionStore, source EventSource, log *logger.Logger) *Controller {
	return &Controller{
		store:  store,
		source: source,
		logger: log.Named("drag"),
	}
}

// OnChange registers a callback for state transitions. It is called without
// the controller lock held.
func (c *Controller) OnChange(fn func(Status)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Status returns the current state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked("")
}

func (c *Controller) statusLocked(reason string) Status {
	if c.active == nil {
		return Status{State: StateIdle, Index: -1, Reason: reason}
	}
	return Status{
		State:     StateDragging,
		GestureID: c.active.id.String(),
		Index:     c.active.index,
		Lock:      c.active.lock,
	}
}

// Begin starts dragging the command at index. A gesture already in progress
// is ended first.
func (c *Controller) Begin(index int, lock LockMode, cam Camera) (Status, error) {
	m := c.store.Mission()
	cmd, err := m.At(index)
	if err != nil {
		return c.Status(), err
	}
	pos, ok, err := m.FlownPosition(index, c.store.DefaultAltitude())
	if err != nil {
		return c.Status(), err
	}
	if !ok {
		return c.Status(), fmt.Errorf("%w: %s at %d", ErrNotDraggable, cmd.Kind(), index)
	}
	if _, circle := cmd.(mission.CirclePoint); circle && lock == LockHorizontalOnly {
		// a circle has no altitude of its own to drag
		return c.Status(), fmt.Errorf("%w: %s altitude at %d", ErrNotDraggable, cmd.Kind(), index)
	}
	point, err := c.store.Frame().ToLocal(pos.Lat, pos.Lon, pos.Alt)
	if err != nil {
		return c.Status(), err
	}
	if _, err := cam.Ray(0, 0); err != nil {
		return c.Status(), err
	}

	c.mu.Lock()
	var notify []Status
	if c.active != nil {
		notify = append(notify, c.endLocked("restarted"))
	}
	g := &gesture{
		id:     uuid.New(),
		index:  index,
		lock:   lock,
		camera: cam,
		point:  point,

		command: cmd,
	}
	c.active = g
	g.stop = c.source.Listen(c.handle)
	status := c.statusLocked("")
	notify = append(notify, status)
	fn := c.onChange
	c.mu.Unlock()

	c.logger.Debug("Drag started",
		logger.String("gesture_id", g.id.String()),
		logger.Int("index", index),
		logger.String("lock", string(lock)))

	if fn != nil {
		for _, s := range notify {
			fn(s)
		}
	}
	return status, nil
}

// Close ends any gesture in progress. It is safe to call more than once.
func (c *Controller) Close() {
	c.end("closed")
}

func (c *Controller) end(reason string) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	status := c.endLocked(reason)
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(status)
	}
}

func (c *Controller) endLocked(reason string) Status {
	g := c.active
	c.active = nil
	g.stop()
	c.logger.Debug("Drag ended",
		logger.String("gesture_id", g.id.String()),
		logger.String("reason", reason))
	return c.statusLocked(reason)
}

func (c *Controller) handle(e Event) {
	switch e.Kind {
	case PointerMove:
		c.move(e)
	case PointerUp, PointerCancel, FocusLost:
		c.end(string(e.Kind))
	}
}

func (c *Controller) move(e Event) {
	c.mu.Lock()
	status, ended := c.moveLocked(e)
	fn := c.onChange
	c.mu.Unlock()

	if ended && fn != nil {
		fn(status)
	}
}

func (c *Controller) moveLocked(e Event) (Status, bool) {
	g := c.active
	if g == nil {
		return Status{}, false
	}
	if e.Camera != nil {
		g.camera = *e.Camera
	}

	ray, err := g.camera.Ray(e.X, e.Y)
	if err != nil {
		c.logger.Debug("Ignoring pointer move", logger.Error(err))
		return Status{}, false
	}
	hit, ok := g.lock.constraintPlane(g.point, g.camera).Intersect(ray)
	if !ok {
		return Status{}, false
	}
	hit = g.lock.constrain(g.point, hit)

	lat, lon, alt, err := c.store.Frame().ToGeodetic(hit)
	if err != nil {
		c.logger.Warn("Rejected drag position",
			logger.Int("index", g.index),
			logger.Error(err))
		return Status{}, false
	}

	var patch mission.Patch
	switch g.lock {
	case LockAltitudeOnly:
		patch = mission.Patch{Lat: &lat, Lon: &lon}
	case LockHorizontalOnly:
		patch = mission.Patch{Alt: &alt}
	default:
		patch = mission.Patch{Lat: &lat, Lon: &lon, Alt: &alt}
	}

	updated, err := c.store.UpdateCommandIf(g.index, g.owns, patch)
	if err != nil {
		c.logger.Warn("Failed to apply drag update",
			logger.Int("index", g.index),
			logger.Error(err))
		switch {
		case errors.Is(err, ErrCommandMoved):
			return c.endLocked("command_moved"), true
		case errors.Is(err, mission.ErrIndexOutOfRange):
			return c.endLocked("command_removed"), true
		}
		return Status{}, false
	}
	g.point = hit
	g.command = updated
	return Status{}, false
}
