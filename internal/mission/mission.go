package mission

import (
	"fmt"
	"math"

	"github.com/yegors/mission-planner/internal/geo"
)

// Mission is an ordered, immutable sequence of commands. Every operation returns
// a new Mission and leaves the receiver untouched; command i always has Seq == i.
type Mission struct {
	commands []Command
}

// New builds a mission from the given commands, assigning sequence numbers by position
func New(commands ...Command) (Mission, error) {
	out := make([]Command, 0, len(commands))
	for i, c := range commands {
		if err := checkCommand(c); err != nil {
			return Mission{}, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, c.withSeq(i))
	}
	return Mission{commands: out}, nil
}

// Len returns the number of commands
func (m Mission) Len() int {
	return len(m.commands)
}

// At returns the command at index i
func (m Mission) At(i int) (Command, error) {
	if i < 0 || i >= len(m.commands) {
		return nil, fmt.Errorf("%w: %d (mission has %d commands)", ErrIndexOutOfRange, i, len(m.commands))
	}
	return m.commands[i], nil
}

// Commands returns a copy of the command list
func (m Mission) Commands() []Command {
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// First returns the first command, or nil for an empty mission
func (m Mission) First() Command {
	if len(m.commands) == 0 {
		return nil
	}
	return m.commands[0]
}

// Last returns the last command, or nil for an empty mission
func (m Mission) Last() Command {
	if len(m.commands) == 0 {
		return nil
	}
	return m.commands[len(m.commands)-1]
}

// Append adds a command to the end of the mission with Seq set to the old length
func (m Mission) Append(c Command) (Mission, error) {
	if err := checkCommand(c); err != nil {
		return m, err
	}
	out := make([]Command, len(m.commands), len(m.commands)+1)
	copy(out, m.commands)
	out = append(out, c.withSeq(len(m.commands)))
	return Mission{commands: out}, nil
}

// RemoveAt removes the command at index and re-sequences the remainder
func (m Mission) RemoveAt(index int) (Mission, error) {
	if _, err := m.At(index); err != nil {
		return m, err
	}
	out := make([]Command, 0, len(m.commands)-1)
	out = append(out, m.commands[:index]...)
	out = append(out, m.commands[index+1:]...)
	return Mission{commands: resequence(out)}, nil
}

// MoveTo moves the command at from so that it ends up at index to
func (m Mission) MoveTo(from, to int) (Mission, error) {
	if _, err := m.At(from); err != nil {
		return m, err
	}
	if _, err := m.At(to); err != nil {
		return m, err
	}
	if from == to {
		return m, nil
	}

	moved := m.commands[from]
	out := make([]Command, 0, len(m.commands))
	out = append(out, m.commands[:from]...)
	out = append(out, m.commands[from+1:]...)

	out = append(out[:to], append([]Command{moved}, out[to:]...)...)
	return Mission{commands: resequence(out)}, nil
}

// UpdateField merges patch into the command at index. Patch fields the command's
// variant does not carry are ignored. Invalid values reject the whole update.
func (m Mission) UpdateField(index int, patch Patch) (Mission, error) {
	current, err := m.At(index)
	if err != nil {
		return m, err
	}
	updated, err := patch.apply(current)
	if err != nil {
		return m, fmt.Errorf("command %d: %w", index, err)
	}
	out := m.Commands()
	out[index] = updated.withSeq(index)
	return Mission{commands: out}, nil
}

// SetAllWaypointAltitudes replaces the altitude of every Waypoint command
func (m Mission) SetAllWaypointAltitudes(alt float64) (Mission, error) {
	if math.IsNaN(alt) || math.IsInf(alt, 0) {
		return m, fmt.Errorf("%w: altitude %v", geo.ErrInvalidCoordinate, alt)
	}
	out := m.Commands()
	for i, c := range out {
		if wp, ok := c.(Waypoint); ok {
			wp.Alt = alt
			out[i] = wp
		}
	}
	return Mission{commands: out}, nil
}

// FlownAltitudes returns the altitude held while each command runs. It starts
// at defaultAltitude and follows the last Takeoff or Waypoint.
func (m Mission) FlownAltitudes(defaultAltitude float64) []float64 {
	out := make([]float64, len(m.commands))
	alt := defaultAltitude
	for i, c := range m.commands {
		switch v := c.(type) {
		case Takeoff:
			alt = v.Alt
		case Waypoint:
			alt = v.Alt
		}
		out[i] = alt
	}
	return out
}

// FlownPosition returns where the command at index is flown. ok is false for
// commands without a position. A CirclePoint takes its altitude from
// FlownAltitudes.
func (m Mission) FlownPosition(index int, defaultAltitude float64) (pos geo.Position, ok bool, err error) {
	c, err := m.At(index)
	if err != nil {
		return geo.Position{}, false, err
	}
	lat, lon, alt, ok := Position(c)
	if !ok {
		return geo.Position{}, false, nil
	}
	if _, circle := c.(CirclePoint); circle {
		alt = m.FlownAltitudes(defaultAltitude)[index]
	}
	return geo.Position{Lat: lat, Lon: lon, Alt: alt}, true, nil
}

// Waypoints returns the Waypoint commands in mission order
func (m Mission) Waypoints() []Waypoint {
	var out []Waypoint
	for _, c := range m.commands {
		if wp, ok := c.(Waypoint); ok {
			out = append(out, wp)
		}
	}
	return out
}

func resequence(cmds []Command) []Command {
	for i, c := range cmds {
		cmds[i] = c.withSeq(i)
	}
	return cmds
}

// checkCommand rejects commands whose payload would put NaN into rendering or a mission file
func checkCommand(c Command) error {
	switch v := c.(type) {
	case nil:
		return fmt.Errorf("%w: nil command", ErrUnknownCommand)
	case Takeoff:
		if err := geo.CheckPosition(v.Lat, v.Lon, v.Alt); err != nil {
			return err
		}
		return nonNegative("takeoff altitude", v.Alt)
	case Waypoint:
		if err := geo.CheckPosition(v.Lat, v.Lon, v.Alt); err != nil {
			return err
		}
		if v.Speed != nil {
			if err := positive("waypoint speed", *v.Speed); err != nil {
				return err
			}
		}
		return nonNegative("hold time", v.HoldSeconds)
	case Wait:
		return nonNegative("wait duration", v.DurationSeconds)
	case Land, ReturnToHome:
		return nil
	case CirclePoint:
		if err := geo.CheckLatLon(v.Lat, v.Lon); err != nil {
			return err
		}
		if err := nonNegative("circle radius", v.RadiusMeters); err != nil {
			return err
		}
		return nonNegative("circle turns", v.Turns)
	case SpeedChange:
		return positive("speed", v.SpeedMetersPerSecond)
	}
	return fmt.Errorf("%w: %T", ErrUnknownCommand, c)
}

func nonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a finite non-negative number, got %v", ErrInvalidParameter, name, v)
	}
	return nil
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be a finite positive number, got %v", ErrInvalidParameter, name, v)
	}
	return nil
}
