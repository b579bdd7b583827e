package mission

import "errors"

var (
	// ErrIndexOutOfRange is returned when an operation addresses a command that does not exist
	ErrIndexOutOfRange = errors.New("command index out of range")
	// ErrUnknownCommand is returned when decoding a command with an unrecognised type
	ErrUnknownCommand = errors.New("unknown command type")
	// ErrInvalidParameter is returned for non-coordinate payloads that cannot be flown (negative durations, zero speeds)
	ErrInvalidParameter = errors.New("invalid command parameter")
)

// ValidationError describes why a mission is not flight-ready
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyMission = &ValidationError{
		Code:    "empty_mission",
		Message: "mission has no commands",
	}
	ErrMustStartWithTakeoff = &ValidationError{
		Code:    "must_start_with_takeoff",
		Message: "mission must start with a takeoff command",
	}
	ErrMustEndWithLandOrRTH = &ValidationError{
		Code:    "must_end_with_land_or_rth",
		Message: "mission must end with a land or return-to-home command",
	}
)
