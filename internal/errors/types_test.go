package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telaak/serial-gsm-rest/internal/models"
)

func TestAppErrorError(t *testing.T) {
	err := New(ErrCodeNotFound, "message not found")
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "message not found")

	wrapped := Wrap(errors.New("disk full"), ErrCodeStorage, "failed to save")
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, ErrCodeStorage, "failed to save")
	assert.ErrorIs(t, err, cause)
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(ErrCodeNotFound, "message not found").WithContext("rowid", 7)
	require.NotNil(t, err.Context)
	assert.Equal(t, 7, err.Context["rowid"])
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "app error",
			err:  New(ErrCodeInvalidInput, "bad input"),
			want: ErrCodeInvalidInput,
		},
		{
			name: "wrapped app error",
			err:  fmt.Errorf("outer: %w", New(ErrCodeNotFound, "missing")),
			want: ErrCodeNotFound,
		},
		{
			name: "transmission error",
			err:  &TransmissionError{Result: models.TransmissionResult{Response: "ERROR"}},
			want: ErrCodeTransmission,
		},
		{
			name: "partial send error",
			err:  &PartialSendError{Cause: errors.New("chunk failed")},
			want: ErrCodePartialSend,
		},
		{
			name: "transmission error wrapping an app error",
			err:  &TransmissionError{Cause: New(ErrCodeDeviceCommand, "device timeout")},
			want: ErrCodeTransmission,
		},
		{
			name: "partial send wrapping a transmission error",
			err:  &PartialSendError{Cause: &TransmissionError{Cause: New(ErrCodeDeviceCommand, "rejected")}},
			want: ErrCodePartialSend,
		},
		{
			name: "plain error",
			err:  errors.New("something"),
			want: ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(ErrCodeNotFound, "missing")))
	assert.True(t, IsNotFound(fmt.Errorf("outer: %w", New(ErrCodeNotFound, "missing"))))
	assert.False(t, IsNotFound(New(ErrCodeStorage, "broken")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestTransmissionErrorCarriesResult(t *testing.T) {
	result := models.TransmissionResult{Message: "hi", Recipient: "+358401234567", Response: "+CMS ERROR: 500"}

	err := &TransmissionError{Result: result}
	assert.Contains(t, err.Error(), "+CMS ERROR: 500")
	assert.Contains(t, err.Error(), "+358401234567")
	assert.Equal(t, result, err.Result)

	cause := errors.New("device rejected")
	withCause := &TransmissionError{Result: result, Cause: cause}
	assert.Contains(t, withCause.Error(), "device rejected")
	assert.ErrorIs(t, withCause, cause)
}

func TestPartialSendErrorReportsSentChunks(t *testing.T) {
	sent := []models.TransmissionResult{{MessageID: "1", Message: "chunk one"}}
	err := &PartialSendError{Sent: sent, Cause: errors.New("second chunk failed")}

	var psErr *PartialSendError
	require.ErrorAs(t, fmt.Errorf("send failed: %w", err), &psErr)
	assert.Len(t, psErr.Sent, 1)
	assert.ErrorIs(t, err, err.Cause)
}
