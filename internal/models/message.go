package models

import (
	"time"
)

// RowID is the persistence layer's handle for a stored record. It is unique
// within its table, stable until the row is deleted, and never reused while
// the row exists.
type RowID int64

// DeviceIndex is the modem-assigned slot of a message in the SIM inbox.
// Indexes are local to the device and are reused after deletion, so a
// DeviceIndex must never be used as a durable handle; that is what RowID
// is for.
type DeviceIndex int

// SMSHeader carries the service-center metadata the modem reports with each
// received message.
type SMSHeader struct {
	Encoding string `json:"encoding"`
	SMSC     string `json:"smsc"`
	SMSCType string `json:"smscType"`
	SMSCPlan string `json:"smscPlan"`
}

// SMSUdh is the user data header of one part of a concatenated multi-part
// SMS. Parts are never reassembled into a single logical message; the header
// is stored per part as-is.
type SMSUdh struct {
	ReferenceNumber int `json:"referenceNumber"`
	Part            int `json:"part"`
	Parts           int `json:"parts"`
}

// SMSMessage is an immutable snapshot of a message in the device inbox.
// UDH is either fully populated or nil, never partial.
type SMSMessage struct {
	RowID        RowID       `json:"rowid,omitempty"`
	Sender       string      `json:"sender"`
	Index        DeviceIndex `json:"index"`
	Message      string      `json:"message"`
	DateTimeSent time.Time   `json:"dateTimeSent"`
	MsgStatus    int         `json:"msgStatus"`
	Header       SMSHeader   `json:"header"`
	UDH          *SMSUdh     `json:"udh,omitempty"`
}

// TransmissionResult is the modem's report for one successfully submitted
// segment.
type TransmissionResult struct {
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Response  string `json:"response"`
}

// SentMessage is the persisted record of one transmitted segment. Sent
// messages have no device-side counterpart, so there is no index.
type SentMessage struct {
	RowID        RowID     `json:"rowid,omitempty"`
	Message      string    `json:"message"`
	Recipient    string    `json:"recipient"`
	DateTimeSent time.Time `json:"dateTimeSent"`
}
