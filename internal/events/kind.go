package events

import "fmt"

// Kind is the closed set of domain event tags carried by notifications and
// realtime frames. Dispatching on Kind instead of free-form strings keeps
// client-side handling an exhaustive switch.
type Kind string

const (
	KindLeaveSubmitted Kind = "LEAVE_SUBMITTED"
	KindLeaveDecided   Kind = "LEAVE_DECIDED"
	KindAttendance     Kind = "ATTENDANCE_EVENT"
	KindPayroll        Kind = "PAYROLL_EVENT"
	KindGeneric        Kind = "GENERIC"
)

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is a member of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindLeaveSubmitted, KindLeaveDecided, KindAttendance, KindPayroll, KindGeneric:
		return true
	}
	return false
}

// ParseKind rejects unknown tags instead of silently passing them through.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind: %q", s)
	}
	return k, nil
}
