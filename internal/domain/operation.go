package domain

import "time"

// OperationKind discriminates the payload of a pending operation.
type OperationKind string

const (
	OperationAdd    OperationKind = "add"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// AddPayload carries the full record created while offline.
type AddPayload struct {
	Bookmark Bookmark `json:"bookmark"`
}

// UpdatePayload carries the field patch of an offline edit. Nil pointers mean
// the field is untouched.
type UpdatePayload struct {
	Title *string `json:"title,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// PendingOperation is one entry of the offline queue: a mutation that could
// not be pushed to the remote backend yet. Exactly one payload pointer is set,
// matching Kind. Delete needs nothing beyond the record id.
type PendingOperation struct {
	Seq        int64          `json:"-"`
	ID         string         `json:"id"`
	RecordID   string         `json:"recordId"`
	Kind       OperationKind  `json:"kind"`
	Add        *AddPayload    `json:"add,omitempty"`
	Update     *UpdatePayload `json:"update,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
	RetryCount int            `json:"retryCount"`
}
