package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type ClaimStatus uint32

const (
	StatusPending ClaimStatus = iota
	StatusClaimed
	StatusCancelled
)

var statusNames = map[ClaimStatus]string{
	StatusPending:   "pending",
	StatusClaimed:   "claimed",
	StatusCancelled: "cancelled",
}

// Terminal reports whether the status is Claimed or Cancelled.
func (s ClaimStatus) Terminal() bool { return s != StatusPending }

func (s ClaimStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s ClaimStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint32(s))
}

// ParseClaimStatus accepts the lower-case name or the numeric discriminant.
func ParseClaimStatus(v string) (ClaimStatus, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, name := range statusNames {
		if v == name {
			return s, nil
		}
	}
	if n, err := strconv.ParseUint(v, 10, 32); err == nil && ClaimStatus(n).Valid() {
		return ClaimStatus(n), nil
	}
	return 0, fmt.Errorf("invalid claim status %q", v)
}

func (s ClaimStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid claim status %d", uint32(s))
	}
	return []byte(s.String()), nil
}

func (s *ClaimStatus) UnmarshalText(text []byte) error {
	v, err := ParseClaimStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalJSON accepts "pending" as well as a bare 0.
func (s *ClaimStatus) UnmarshalJSON(data []byte) error {
	return s.UnmarshalText([]byte(strings.Trim(strings.TrimSpace(string(data)), `"`)))
}
