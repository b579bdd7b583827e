package mission

// Validate checks that a mission is flight-ready. It returns nil or one of
// ErrEmptyMission, ErrMustStartWithTakeoff and ErrMustEndWithLandOrRTH.
// Incremental editing and import never call this; QGC export does.
func Validate(m Mission) error {
	if m.Len() == 0 {
		return ErrEmptyMission
	}
	if _, ok := m.First().(Takeoff); !ok {
		return ErrMustStartWithTakeoff
	}
	switch m.Last().(type) {
	case Land, ReturnToHome:
		return nil
	}
	return ErrMustEndWithLandOrRTH
}
