package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative path", "messages.db", false},
		{"absolute path", "/var/lib/gsm/messages.db", false},
		{"device path", "/dev/ttyUSB0", false},
		{"nested relative path", "data/messages.db", false},
		{"empty path", "", true},
		{"nul byte", "messages\x00.db", true},
		{"parent traversal", "../messages.db", true},
		{"embedded traversal", "data/../../etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
