package load

import (
	"fmt"
	"strings"
)

// StatusCode is the canonical numeric id of a transaction status
type StatusCode int

const (
	StatusDelivered    StatusCode = 1
	StatusUndelivered  StatusCode = 2
	StatusAcknowledged StatusCode = 8
	StatusInvalid      StatusCode = 15
	StatusRejected     StatusCode = 16
	StatusCreated      StatusCode = 200
	StatusUnknown      StatusCode = -1
	StatusWait         StatusCode = -2
)

type statusInfo struct {
	short   string
	display string
}

var statusTable = map[StatusCode]statusInfo{
	StatusDelivered:    {"DEL", "Delivered"},
	StatusUndelivered:  {"UND", "Undelivered"},
	StatusAcknowledged: {"ACK", "Acknowledged"},
	StatusInvalid:      {"INV", "Invalid"},
	StatusRejected:     {"REJ", "Rejected"},
	StatusCreated:      {"CREATED", "Created"},
	StatusUnknown:      {"UNKNOWN", "Unknown"},
	StatusWait:         {"WAIT", "Waiting"},
}

// IsValid checks if the code is one of the canonical codes
func (c StatusCode) IsValid() bool {
	_, ok := statusTable[c]
	return ok
}

// IsTerminal reports whether no further transition is allowed out of the code
func (c StatusCode) IsTerminal() bool {
	switch c {
	case StatusDelivered, StatusUndelivered, StatusAcknowledged, StatusInvalid, StatusRejected:
		return true
	}
	return false
}

// Short returns the compact label stored alongside ledger entries
func (c StatusCode) Short() string {
	if info, ok := statusTable[c]; ok {
		return info.short
	}
	return statusTable[StatusUnknown].short
}

// String returns the display value
func (c StatusCode) String() string {
	if info, ok := statusTable[c]; ok {
		return info.display
	}
	return fmt.Sprintf("StatusCode(%d)", int(c))
}

// CanTransitionTo checks if an entry in state c may move to target
func (c StatusCode) CanTransitionTo(target StatusCode) bool {
	switch c {
	case StatusCreated:
		return target == StatusWait || target == StatusRejected
	case StatusWait, StatusUnknown:
		return target.IsTerminal() || target == StatusUnknown
	}
	return false
}

// Status is an immutable canonical status. It is either a known code or an
// unmapped provider value carried verbatim.
type Status struct {
	code StatusCode
	raw  string
}

// Known returns the status for a canonical code. Codes outside the table are
// treated as unknown values.
func Known(code StatusCode) Status {
	if !code.IsValid() || code == StatusUnknown {
		return Unknown(fmt.Sprintf("%d", int(code)))
	}
	return Status{code: code}
}

// Unknown returns an unmapped status that remembers the provider's raw value
func Unknown(raw string) Status {
	return Status{code: StatusUnknown, raw: raw}
}

// StatusFromValue matches value case-insensitively against display values and
// short labels, falling back to Unknown(value).
func StatusFromValue(value string) Status {
	v := strings.TrimSpace(value)
	for code, info := range statusTable {
		if code == StatusUnknown {
			continue
		}
		if strings.EqualFold(v, info.display) || strings.EqualFold(v, info.short) {
			return Status{code: code}
		}
	}
	return Unknown(value)
}

// StatusFromID maps a canonical numeric id, falling back to Unknown.
func StatusFromID(id int) Status {
	return Known(StatusCode(id))
}

// Code returns the canonical code; StatusUnknown for unmapped values
func (s Status) Code() StatusCode {
	return s.code
}

// Raw returns the unmapped provider value, empty for known statuses
func (s Status) Raw() string {
	return s.raw
}

// IsKnown reports whether the status maps to a canonical code
func (s Status) IsKnown() bool {
	return s.code != StatusUnknown
}

// IsTerminal reports whether the status ends the lifecycle
func (s Status) IsTerminal() bool {
	return s.code.IsTerminal()
}

// Is reports whether s carries the given known code
func (s Status) Is(code StatusCode) bool {
	return s.code == code
}

// String returns the display value, with the raw value for unknown statuses
func (s Status) String() string {
	if s.code == StatusUnknown {
		if s.raw == "" {
			return StatusUnknown.String()
		}
		return fmt.Sprintf("%s(%s)", StatusUnknown.String(), s.raw)
	}
	return s.code.String()
}

// RestoreStatus rebuilds a stored status from its code and raw value
func RestoreStatus(code StatusCode, raw string) Status {
	if code == StatusUnknown {
		return Unknown(raw)
	}
	return Known(code)
}
