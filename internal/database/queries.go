package database

// Received message queries. Rows are addressed by sqlite's implicit rowid,
// which is the external handle for stored messages.
const (
	insertMessageQuery = `
		INSERT INTO messages (
			sender, message, msg_status, date_time_sent, msg_index,
			encoding, smsc, smsc_type, smsc_plan,
			reference_number, parts, part
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectMessageQuery = `
		SELECT rowid, sender, message, msg_status, date_time_sent, msg_index,
		       encoding, smsc, smsc_type, smsc_plan,
		       reference_number, parts, part
		FROM messages
		WHERE rowid = ?
	`

	selectMessagesQuery = `
		SELECT rowid, sender, message, msg_status, date_time_sent, msg_index,
		       encoding, smsc, smsc_type, smsc_plan,
		       reference_number, parts, part
		FROM messages
	`

	deleteMessageQuery = `
		DELETE FROM messages WHERE rowid = ?
	`
)

// Sent message queries
const (
	insertSentMessageQuery = `
		INSERT INTO sent (message, recipient, date_time_sent) VALUES (?, ?, ?)
	`

	selectSentMessageQuery = `
		SELECT rowid, message, recipient, date_time_sent
		FROM sent
		WHERE rowid = ?
	`

	selectSentMessagesQuery = `
		SELECT rowid, message, recipient, date_time_sent
		FROM sent
	`

	deleteSentMessageQuery = `
		DELETE FROM sent WHERE rowid = ?
	`
)
