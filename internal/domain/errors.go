package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrEventNotFound    = errors.New("event not found")
	ErrEventNotBookable = errors.New("event not bookable")
	ErrSeatMapNotFound  = errors.New("seat map not found")
	ErrDuplicateSeatMap = errors.New("seat map already exists")
	ErrSeatUnavailable  = errors.New("seat unavailable")
	ErrQuotaExceeded    = errors.New("quota exceeded")
)

// SeatUnavailableError names the seats a hold could not acquire.
type SeatUnavailableError struct {
	SeatIDs []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.SeatIDs, ", "))
}

func (e *SeatUnavailableError) Unwrap() error {
	return ErrSeatUnavailable
}

type QuotaExceededError struct {
	Current   int
	Requested int
	Max       int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: holding %d, requested %d, limit %d", e.Current, e.Requested, e.Max)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}
