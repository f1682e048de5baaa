// Package types defines the contract between the modem gateway and the
// modem-control collaborator that owns the AT wire protocol.
package types

import (
	"context"

	"github.com/telaak/serial-gsm-rest/internal/models"
)

// Driver is the low-level modem collaborator. Implementations own the
// physical connection and the command wire format; callers own readiness
// sequencing and event distribution.
type Driver interface {
	// Open establishes the physical connection.
	Open(ctx context.Context) error

	// Initialize runs the device initialization sequence. Must be called
	// after Open and before any other command.
	Initialize(ctx context.Context) error

	// GetSimInbox lists every message currently stored in the device
	// inbox, in device order.
	GetSimInbox(ctx context.Context) ([]models.SMSMessage, error)

	// SendSMS transmits one segment. On device-reported failure the
	// returned result carries whatever the device echoed back.
	SendSMS(ctx context.Context, recipient, text string, silent bool) (models.TransmissionResult, error)

	// ReadSMSByIndex reads the message stored at the given inbox index.
	// The device may report zero or more entries for an index.
	ReadSMSByIndex(ctx context.Context, index models.DeviceIndex) ([]models.SMSMessage, error)

	// DeleteSMSByIndex removes the message at the given inbox index.
	DeleteSMSByIndex(ctx context.Context, index models.DeviceIndex) error

	// DeleteAllSMS clears the entire device inbox.
	DeleteAllSMS(ctx context.Context) error

	// Incoming delivers batches of newly received messages as the device
	// announces them.
	Incoming() <-chan []models.SMSMessage

	// Close tears down the connection.
	Close() error
}
