package models

// RequestID is a caller-assigned identifier correlating an input address with its batch result row.
// It must be unique within one batch call.
type RequestID string

// Task represents a geocoding task with an ID and an associated address.
type Task struct {
	ID      int     // ID is the unique identifier for the task.
	Address Address // Address is the location to be geocoded.
}
