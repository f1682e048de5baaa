package migrations

// The schema is additive only: every statement is IF NOT EXISTS so it is
// safe to apply on every startup. There is no versioning; columns are never
// dropped or rewritten.
const initialSchema = `
CREATE TABLE IF NOT EXISTS messages (
    sender TEXT NOT NULL,
    message TEXT NOT NULL,
    msg_status INTEGER NOT NULL DEFAULT 0,
    date_time_sent TEXT NOT NULL,
    msg_index INTEGER NOT NULL,
    encoding TEXT,
    smsc TEXT,
    smsc_type TEXT,
    smsc_plan TEXT,
    reference_number INTEGER NULL,
    parts INTEGER NULL,
    part INTEGER NULL
);

CREATE TABLE IF NOT EXISTS sent (
    message TEXT NOT NULL,
    recipient TEXT NOT NULL,
    date_time_sent TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);
CREATE INDEX IF NOT EXISTS idx_messages_reference_number ON messages(reference_number);
CREATE INDEX IF NOT EXISTS idx_sent_recipient ON sent(recipient);
`

// GetInitialSchema returns the database schema applied at startup.
func GetInitialSchema() string {
	return initialSchema
}
