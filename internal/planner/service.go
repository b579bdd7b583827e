// Package planner owns the mission being edited in the current session.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/kml"
	"github.com/yegors/mission-planner/internal/mission"
	"github.com/yegors/mission-planner/internal/qgc"
	"github.com/yegors/mission-planner/internal/stats"
	"github.com/yegors/mission-planner/internal/storage/sqlite"
	"github.com/yegors/mission-planner/pkg/logger"
)

// MessageTypeMissionUpdated is broadcast after every successful mutation
const MessageTypeMissionUpdated = "mission_updated"

// Broadcaster pushes events to connected clients
type Broadcaster interface {
	BroadcastEvent(messageType string, data map[string]any)
}

// ExportRecorder stores produced mission files
type ExportRecorder interface {
	SaveExport(ctx context.Context, record *sqlite.ExportRecord) error
}

// Config holds the session settings
type Config struct {
	Frame           geo.Frame
	Params          stats.Params
	DefaultAltitude float64
	MissionName     string
}

// Snapshot is the mission as clients see it
type Snapshot struct {
	Commands   mission.Mission          `json:"commands"`
	Valid      bool                     `json:"valid"`
	Validation *mission.ValidationError `json:"validation_error,omitempty"`
	Stats      stats.Stats              `json:"stats"`
	Frame      geo.Frame                `json:"frame"`

	// Revision counts committed changes; clients keep the highest they have seen
	Revision uint64 `json:"revision"`
}

// Service holds the single mission of the session. Mutations are serialised and
// the last writer wins.
type Service struct {
	mutex           sync.RWMutex
	mission         mission.Mission
	frame           geo.Frame
	params          stats.Params
	defaultAltitude float64
	name            string
	revision        uint64

	// held from commit until the broadcast is handed off
	broadcastMutex sync.Mutex

	broadcaster Broadcaster
	exports     ExportRecorder
	logger      *logger.Logger
	now         func() time.Time
}

// NewService creates a service with an empty mission
func NewService(cfg Config, logger *logger.Logger) *Service {
	name := cfg.MissionName
	if name == "" {
		name = "Mission"
	}
	return &Service{
		frame:           cfg.Frame,
		params:          cfg.Params,
		defaultAltitude: cfg.DefaultAltitude,
		name:            name,
		logger:          logger.Named("planner"),
		now:             time.Now,
	}
}

// SetBroadcaster sets where mission updates are pushed
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.broadcaster = b
}

// SetExportRecorder sets where exports are recorded
func (s *Service) SetExportRecorder(r ExportRecorder) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.exports = r
}

// Mission returns the current mission
func (s *Service) Mission() mission.Mission {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.mission
}

// Frame returns the current coordinate frame
func (s *Service) Frame() geo.Frame {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.frame
}

// Params returns the flight parameters used for statistics
func (s *Service) Params() stats.Params {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.params
}

// DefaultAltitude returns the altitude written to the home record
func (s *Service) DefaultAltitude() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.defaultAltitude
}

// Snapshot returns the mission with its validation result and rounded stats
func (s *Service) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		Commands: s.mission,
		Valid:    true,
		Stats:    stats.Compute(s.mission, s.frame, s.params).Rounded(),
		Frame:    s.frame,
		Revision: s.revision,
	}
	if err := mission.Validate(s.mission); err != nil {
		snap.Valid = false
		var verr *mission.ValidationError
		if errors.As(err, &verr) {
			snap.Validation = verr
		}
	}
	return snap
}

// Append adds a command and returns it with its assigned sequence number
func (s *Service) Append(c mission.Command) (mission.Command, error) {
	var added mission.Command
	err := s.mutate("append", func(m mission.Mission) (mission.Mission, error) {
		out, err := m.Append(c)
		if err != nil {
			return m, err
		}
		added = out.Last()
		return out, nil
	})
	return added, err
}

// RemoveAt removes the command at index
func (s *Service) RemoveAt(index int) error {
	return s.mutate("remove", func(m mission.Mission) (mission.Mission, error) {
		return m.RemoveAt(index)
	})
}

// MoveTo reorders a command
func (s *Service) MoveTo(from, to int) error {
	return s.mutate("move", func(m mission.Mission) (mission.Mission, error) {
		return m.MoveTo(from, to)
	})
}

// UpdateCommand merges patch into the command at index
func (s *Service) UpdateCommand(index int, patch mission.Patch) error {
	return s.mutate("update", func(m mission.Mission) (mission.Mission, error) {
		return m.UpdateField(index, patch)
	})
}

// UpdateCommandIf merges patch into the command at index if check accepts the
// command currently there, and returns the updated command
func (s *Service) UpdateCommandIf(index int, check func(mission.Command) error, patch mission.Patch) (mission.Command, error) {
	var updated mission.Command
	err := s.mutate("update", func(m mission.Mission) (mission.Mission, error) {
		current, err := m.At(index)
		if err != nil {
			return m, err
		}
		if err := check(current); err != nil {
			return m, err
		}
		out, err := m.UpdateField(index, patch)
		if err != nil {
			return m, err
		}
		updated, err = out.At(index)
		return out, err
	})
	return updated, err
}

// SetAllWaypointAltitudes sets the altitude of every waypoint
func (s *Service) SetAllWaypointAltitudes(alt float64) error {
	return s.mutate("set_altitudes", func(m mission.Mission) (mission.Mission, error) {
		return m.SetAllWaypointAltitudes(alt)
	})
}

// Clear discards the mission
func (s *Service) Clear() {
	_ = s.mutate("clear", func(mission.Mission) (mission.Mission, error) {
		return mission.Mission{}, nil
	})
}

// Replace swaps in a whole mission
func (s *Service) Replace(m mission.Mission) {
	_ = s.mutate("replace", func(mission.Mission) (mission.Mission, error) {
		return m, nil
	})
}

func (s *Service) mutate(op string, fn func(mission.Mission) (mission.Mission, error)) error {
	s.mutex.Lock()
	next, err := fn(s.mission)
	if err != nil {
		s.mutex.Unlock()
		s.logger.Debug("Rejected mission change",
			logger.String("op", op),
			logger.Error(err))
		return err
	}
	s.mission = next
	revision := s.publishUnlock()

	s.logger.Debug("Mission changed",
		logger.String("op", op),
		logger.Int("commands", next.Len()),
		logger.Int64("revision", int64(revision)))
	return nil
}

// publishUnlock commits a change made under s.mutex: it bumps the revision,
// releases s.mutex and broadcasts the new snapshot. broadcastMutex is taken
// before s.mutex is released so snapshots leave in commit order.
func (s *Service) publishUnlock() uint64 {
	s.revision++
	snap := s.snapshotLocked()
	b := s.broadcaster

	s.broadcastMutex.Lock()
	defer s.broadcastMutex.Unlock()
	s.mutex.Unlock()

	if b != nil {
		b.BroadcastEvent(MessageTypeMissionUpdated, map[string]any{"mission": snap})
	}
	return snap.Revision
}

// Validate checks the current mission
func (s *Service) Validate() error {
	return mission.Validate(s.Mission())
}

// Stats returns the unrounded statistics of the current mission
func (s *Service) Stats() stats.Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return stats.Compute(s.mission, s.frame, s.params)
}

// Legs returns the per-leg breakdown with magnetic headings for today
func (s *Service) Legs() []stats.Leg {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return stats.Legs(s.mission, s.frame, s.params, s.now())
}

// ExportQGC validates the mission and encodes it. A validation failure blocks
// the export and leaves the mission untouched.
func (s *Service) ExportQGC(ctx context.Context) (string, error) {
	s.mutex.RLock()
	m, frame, alt, params := s.mission, s.frame, s.defaultAltitude, s.params
	s.mutex.RUnlock()

	if err := mission.Validate(m); err != nil {
		return "", err
	}
	text, err := qgc.Encode(m, frame, alt)
	if err != nil {
		return "", fmt.Errorf("failed to encode mission: %w", err)
	}

	s.record(ctx, sqlite.FormatQGC, m, stats.Compute(m, frame, params), text)
	s.logger.Info("Exported mission",
		logger.String("format", sqlite.FormatQGC),
		logger.Int("commands", m.Len()))
	return text, nil
}

// ExportKML renders the mission as KML. It does not require a valid mission.
func (s *Service) ExportKML(ctx context.Context) ([]byte, error) {
	s.mutex.RLock()
	m, frame, alt, params, name := s.mission, s.frame, s.defaultAltitude, s.params, s.name
	s.mutex.RUnlock()

	out, err := kml.Encode(m, frame, alt, name)
	if err != nil {
		return nil, err
	}
	s.record(ctx, sqlite.FormatKML, m, stats.Compute(m, frame, params), string(out))
	return out, nil
}

func (s *Service) record(ctx context.Context, format string, m mission.Mission, st stats.Stats, content string) {
	s.mutex.RLock()
	rec, name := s.exports, s.name
	s.mutex.RUnlock()
	if rec == nil {
		return
	}

	r := st.Rounded()
	err := rec.SaveExport(ctx, &sqlite.ExportRecord{
		CreatedAt:      s.now().UTC(),
		Format:         format,
		MissionName:    name,
		CommandCount:   m.Len(),
		DistanceMeters: r.DistanceMeters,
		TimeSeconds:    r.TimeSeconds,
		Content:        content,
	})
	if err != nil {
		s.logger.Warn("Failed to record export", logger.Error(err))
	}
}

// ImportQGC replaces the mission with the contents of a mission file. On any
// parse error the current mission is kept. The imported mission is not
// validated, so an incomplete plan can be loaded and finished in the editor.
func (s *Service) ImportQGC(text string) (mission.Mission, error) {
	m, err := qgc.DecodeMission(text)
	if err != nil {
		return mission.Mission{}, err
	}
	s.Replace(m)
	s.logger.Info("Imported mission", logger.Int("commands", m.Len()))
	return m, nil
}

// SetOrigin moves the frame origin. Commands keep their geodetic positions.
func (s *Service) SetOrigin(lat, lon float64) (geo.Frame, error) {
	s.mutex.Lock()
	frame, err := geo.NewFrameWithZoom(lat, lon, s.frame.Zoom)
	if err != nil {
		s.mutex.Unlock()
		return geo.Frame{}, err
	}
	s.frame = frame
	s.publishUnlock()

	s.logger.Info("Frame origin changed",
		logger.Float64("lat", lat),
		logger.Float64("lon", lon))
	return frame, nil
}
