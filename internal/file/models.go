package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Record is the canonical metadata for one stored file. Everything except
// Pin is immutable after creation; Pin changes only through ReassignPin.
// DownloadURL is a transient retrieval reference attached at read time and
// never persisted — for an S3 backend it is a signed URL that expires.
type Record struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	StorageKey   string    `json:"filename"`
	Size         int64     `json:"size"`
	Mimetype     string    `json:"mimetype"`
	UploadDate   time.Time `json:"uploadDate"`
	Pin          Pin       `json:"pin"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
}

// Pin distinguishes anonymous records from PIN-scoped ones. The zero value
// is Unassigned; an assigned pin is never the empty string.
type Pin struct {
	value    string
	assigned bool
}

// NoPin returns the unassigned variant.
func NoPin() Pin {
	return Pin{}
}

// AssignedPin wraps a non-empty pin value.
func AssignedPin(value string) (Pin, error) {
	if value == "" {
		return Pin{}, ErrEmptyPin
	}
	return Pin{value: value, assigned: true}, nil
}

// Assigned reports whether the record is scoped to a pin.
func (p Pin) Assigned() bool {
	return p.assigned
}

// Value returns the pin string, empty when unassigned.
func (p Pin) Value() string {
	return p.value
}

// StringPtr renders the pin as the nullable string the storage backends use.
func (p Pin) StringPtr() *string {
	if !p.assigned {
		return nil
	}
	v := p.value
	return &v
}

// PinFromPtr converts a nullable stored value back to a Pin. An empty string
// is normalized to Unassigned so the non-empty invariant holds on the way out.
func PinFromPtr(v *string) Pin {
	if v == nil || *v == "" {
		return Pin{}
	}
	return Pin{value: *v, assigned: true}
}

// MarshalJSON renders an unassigned pin as null.
func (p Pin) MarshalJSON() ([]byte, error) {
	if !p.assigned {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON accepts null or a non-empty string.
func (p *Pin) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Pin{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal pin: %w", err)
	}
	*p = PinFromPtr(&s)
	return nil
}

// Upload is one file handed to the coordinator by the HTTP layer.
type Upload struct {
	OriginalName string
	Mimetype     string
	Size         int64
	Content      io.Reader
}

// StoredBlob describes the outcome of a blob store write.
type StoredBlob struct {
	StorageKey string
	Size       int64
	Mimetype   string
}

// AssignResult reports a pin reassignment: how many records the backend
// matched, and the post-update snapshot of every requested record that exists.
type AssignResult struct {
	Count   int64    `json:"count"`
	Records []Record `json:"files"`
}
