package shortener

import (
	"errors"
	"strings"
)

// ErrShortCodeTaken marks a Conflict caused by a short code that is already in use.
var ErrShortCodeTaken = errors.New("short code already taken")

// UnsafeError reports a destination the threat classifier rejected.
type UnsafeError struct {
	ThreatTypes    []string
	PlatformStatus []string
}

func (e *UnsafeError) Error() string {
	if len(e.ThreatTypes) == 0 {
		return "destination flagged as unsafe"
	}
	return "destination flagged as unsafe: " + strings.Join(e.ThreatTypes, ", ")
}

// Details is the JSON body fragment sent alongside a 400 or 403.
func (e *UnsafeError) Details() map[string][]string {
	return map[string][]string{
		"threatTypes":    nonNil(e.ThreatTypes),
		"platformStatus": nonNil(e.PlatformStatus),
	}
}

// unsafeDetails returns the verdict details carried by err, if any.
func unsafeDetails(err error) any {
	var ue *UnsafeError
	if errors.As(err, &ue) {
		return ue.Details()
	}
	return nil
}
