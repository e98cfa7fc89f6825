package scheduler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrResourceExhausted is returned by Acquire when the slot cannot fit even
// after every other resident slot has been considered for eviction.
var ErrResourceExhausted = errors.New("resource exhausted")

// ErrSlotNotFound is returned for names that were never registered.
var ErrSlotNotFound = errors.New("slot not found")

type exhaustedError struct {
	slot       string
	needMB     int
	freeMB     int
	capacityMB int
}

func (e exhaustedError) Error() string {
	return fmt.Sprintf("resource exhausted: %s needs %dMB, %dMB free of %dMB", e.slot, e.needMB, e.freeMB, e.capacityMB)
}

func (e exhaustedError) Unwrap() error { return ErrResourceExhausted }

// StatusCode lets the HTTP layer map the error without importing this package.
func (e exhaustedError) StatusCode() int { return http.StatusInsufficientStorage }

type slotNotFoundError struct{ name string }

func (e slotNotFoundError) Error() string { return "slot not found: " + e.name }

func (e slotNotFoundError) Unwrap() error { return ErrSlotNotFound }

func (e slotNotFoundError) StatusCode() int { return http.StatusNotFound }

// IsResourceExhausted reports whether err indicates the budget could not be met.
func IsResourceExhausted(err error) bool { return errors.Is(err, ErrResourceExhausted) }

// IsSlotNotFound reports whether err indicates an unknown slot name.
func IsSlotNotFound(err error) bool { return errors.Is(err, ErrSlotNotFound) }
