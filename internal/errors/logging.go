package errors

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// LogError logs an error at error level with its code and context attached.
// The ingestion pipeline uses this when it swallows per-item failures.
func LogError(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	entry := withErrorFields(logger, err)
	for _, f := range fields {
		entry = entry.WithFields(f)
	}
	entry.Error(message)
}

// LogWarn logs an error at warn level with its code and context attached.
func LogWarn(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	entry := withErrorFields(logger, err)
	for _, f := range fields {
		entry = entry.WithFields(f)
	}
	entry.Warn(message)
}

func withErrorFields(logger *logrus.Logger, err error) *logrus.Entry {
	entry := logger.WithError(err)
	entry = entry.WithField("error_code", GetCode(err))

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Context != nil {
		for k, v := range appErr.Context {
			entry = entry.WithField(k, v)
		}
	}
	return entry
}
