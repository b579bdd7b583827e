package mission

import (
	"encoding/json"
	"fmt"
)

// MarshalCommand encodes a command with a "type" discriminator
func MarshalCommand(c Command) ([]byte, error) {
	switch v := c.(type) {
	case Takeoff:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Takeoff
		}{KindTakeoff, v})
	case Waypoint:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Waypoint
		}{KindWaypoint, v})
	case Wait:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Wait
		}{KindWait, v})
	case Land:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Land
		}{KindLand, v})
	case ReturnToHome:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ReturnToHome
		}{KindReturnToHome, v})
	case CirclePoint:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			CirclePoint
		}{KindCirclePoint, v})
	case SpeedChange:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SpeedChange
		}{KindSpeedChange, v})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, c)
}

// UnmarshalCommand decodes a command written by MarshalCommand. The seq field, if
// present, is kept as-is; Mission operations overwrite it.
func UnmarshalCommand(data []byte) (Command, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode command: %w", err)
	}

	var (
		c   Command
		err error
	)
	switch head.Type {
	case KindTakeoff:
		var v Takeoff
		err = json.Unmarshal(data, &v)
		c = v
	case KindWaypoint:
		var v Waypoint
		err = json.Unmarshal(data, &v)
		c = v
	case KindWait:
		var v Wait
		err = json.Unmarshal(data, &v)
		c = v
	case KindLand:
		var v Land
		err = json.Unmarshal(data, &v)
		c = v
	case KindReturnToHome:
		var v ReturnToHome
		err = json.Unmarshal(data, &v)
		c = v
	case KindCirclePoint:
		var v CirclePoint
		err = json.Unmarshal(data, &v)
		c = v
	case KindSpeedChange:
		var v SpeedChange
		err = json.Unmarshal(data, &v)
		c = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s command: %w", head.Type, err)
	}
	return c, nil
}

// MarshalJSON encodes the mission as an array of tagged commands
func (m Mission) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(m.commands))
	for _, c := range m.commands {
		b, err := MarshalCommand(c)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes an array of tagged commands, re-deriving sequence numbers
func (m *Mission) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode mission: %w", err)
	}
	cmds := make([]Command, 0, len(raw))
	for i, r := range raw {
		c, err := UnmarshalCommand(r)
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, c)
	}
	decoded, err := New(cmds...)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
