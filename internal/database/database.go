package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/telaak/serial-gsm-rest/internal/errors"
	"github.com/telaak/serial-gsm-rest/internal/migrations"
	"github.com/telaak/serial-gsm-rest/internal/models"
	"github.com/telaak/serial-gsm-rest/internal/security"
)

// Database is the message store: received messages and sent records, with
// row⇄domain serialization. Row identifiers are sqlite rowids.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

// New opens (creating if necessary) the sqlite database at dbPath and
// applies the schema. Safe to call on every startup.
func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := newEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveMessage inserts one received message and returns its row identifier.
// The user data header is stored as a unit: all three columns, or all NULL.
// A header with an unset field is treated as absent.
func (d *Database) SaveMessage(ctx context.Context, msg models.SMSMessage) (models.RowID, error) {
	body, err := d.encryptor.EncryptIfEnabled(msg.Message)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to encrypt message body")
	}

	var refNumber, parts, part interface{}
	if udh := msg.UDH; udh != nil && udh.ReferenceNumber != 0 && udh.Part != 0 && udh.Parts != 0 {
		refNumber, parts, part = udh.ReferenceNumber, udh.Parts, udh.Part
	}

	res, err := d.db.ExecContext(ctx, insertMessageQuery,
		msg.Sender,
		body,
		msg.MsgStatus,
		msg.DateTimeSent.UTC().Format(time.RFC3339Nano),
		int(msg.Index),
		msg.Header.Encoding,
		msg.Header.SMSC,
		msg.Header.SMSCType,
		msg.Header.SMSCPlan,
		refNumber,
		parts,
		part,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to save message")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to read inserted rowid")
	}
	return models.RowID(id), nil
}

// GetMessage returns the received message stored under id.
func (d *Database) GetMessage(ctx context.Context, id models.RowID) (models.SMSMessage, error) {
	row := d.db.QueryRowContext(ctx, selectMessageQuery, int64(id))
	msg, err := d.scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SMSMessage{}, apperrors.New(apperrors.ErrCodeNotFound, "message not found").WithContext("rowid", id)
		}
		return models.SMSMessage{}, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to read message")
	}
	return msg, nil
}

// GetMessages returns every stored received message.
func (d *Database) GetMessages(ctx context.Context) ([]models.SMSMessage, error) {
	rows, err := d.db.QueryContext(ctx, selectMessagesQuery)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to query messages")
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []models.SMSMessage
	for rows.Next() {
		msg, err := d.scanMessage(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to scan message row")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to iterate message rows")
	}
	return messages, nil
}

// DeleteMessage removes the row with the given identifier. Deleting a row
// that does not exist is a no-op success.
func (d *Database) DeleteMessage(ctx context.Context, id models.RowID) error {
	if _, err := d.db.ExecContext(ctx, deleteMessageQuery, int64(id)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to delete message")
	}
	return nil
}

// SaveSentMessage records one transmitted segment, stamped with the current
// time, and returns its row identifier.
func (d *Database) SaveSentMessage(ctx context.Context, message, recipient string) (models.RowID, error) {
	body, err := d.encryptor.EncryptIfEnabled(message)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to encrypt message body")
	}

	res, err := d.db.ExecContext(ctx, insertSentMessageQuery,
		body,
		recipient,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to save sent message")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to read inserted rowid")
	}
	return models.RowID(id), nil
}

// GetSentMessage returns the sent record stored under id.
func (d *Database) GetSentMessage(ctx context.Context, id models.RowID) (models.SentMessage, error) {
	row := d.db.QueryRowContext(ctx, selectSentMessageQuery, int64(id))
	msg, err := d.scanSentMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SentMessage{}, apperrors.New(apperrors.ErrCodeNotFound, "sent message not found").WithContext("rowid", id)
		}
		return models.SentMessage{}, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to read sent message")
	}
	return msg, nil
}

// GetSentMessages returns every stored sent record.
func (d *Database) GetSentMessages(ctx context.Context) ([]models.SentMessage, error) {
	rows, err := d.db.QueryContext(ctx, selectSentMessagesQuery)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to query sent messages")
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []models.SentMessage
	for rows.Next() {
		msg, err := d.scanSentMessage(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to scan sent message row")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to iterate sent message rows")
	}
	return messages, nil
}

// DeleteSentMessage removes the sent record with the given identifier.
// Deleting a row that does not exist is a no-op success.
func (d *Database) DeleteSentMessage(ctx context.Context, id models.RowID) error {
	if _, err := d.db.ExecContext(ctx, deleteSentMessageQuery, int64(id)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to delete sent message")
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanMessage reconstructs a domain message from a row. The UDH is present
// only when all three multipart columns are set; anything less is treated
// as no header.
func (d *Database) scanMessage(s scanner) (models.SMSMessage, error) {
	var (
		rowid     int64
		body      string
		sentAt    string
		msgIndex  int
		refNumber sql.NullInt64
		parts     sql.NullInt64
		part      sql.NullInt64
	)
	msg := models.SMSMessage{}

	err := s.Scan(
		&rowid,
		&msg.Sender,
		&body,
		&msg.MsgStatus,
		&sentAt,
		&msgIndex,
		&msg.Header.Encoding,
		&msg.Header.SMSC,
		&msg.Header.SMSCType,
		&msg.Header.SMSCPlan,
		&refNumber,
		&parts,
		&part,
	)
	if err != nil {
		return models.SMSMessage{}, err
	}

	decrypted, err := d.encryptor.DecryptIfEnabled(body)
	if err != nil {
		return models.SMSMessage{}, fmt.Errorf("failed to decrypt message body: %w", err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, sentAt)
	if err != nil {
		return models.SMSMessage{}, fmt.Errorf("failed to parse stored timestamp %q: %w", sentAt, err)
	}

	msg.RowID = models.RowID(rowid)
	msg.Message = decrypted
	msg.DateTimeSent = timestamp
	msg.Index = models.DeviceIndex(msgIndex)

	if refNumber.Valid && parts.Valid && part.Valid &&
		refNumber.Int64 != 0 && parts.Int64 != 0 && part.Int64 != 0 {
		msg.UDH = &models.SMSUdh{
			ReferenceNumber: int(refNumber.Int64),
			Parts:           int(parts.Int64),
			Part:            int(part.Int64),
		}
	}

	return msg, nil
}

func (d *Database) scanSentMessage(s scanner) (models.SentMessage, error) {
	var (
		rowid  int64
		body   string
		sentAt string
	)
	msg := models.SentMessage{}

	if err := s.Scan(&rowid, &body, &msg.Recipient, &sentAt); err != nil {
		return models.SentMessage{}, err
	}

	decrypted, err := d.encryptor.DecryptIfEnabled(body)
	if err != nil {
		return models.SentMessage{}, fmt.Errorf("failed to decrypt message body: %w", err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, sentAt)
	if err != nil {
		return models.SentMessage{}, fmt.Errorf("failed to parse stored timestamp %q: %w", sentAt, err)
	}

	msg.RowID = models.RowID(rowid)
	msg.Message = decrypted
	msg.DateTimeSent = timestamp
	return msg, nil
}
