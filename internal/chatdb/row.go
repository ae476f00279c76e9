package chatdb

import (
	"database/sql"
	"fmt"
	"strings"
)

// MessageRow is one flat row of the inbound range query: one message joined
// with its sender, chat and (optionally) one attachment. A message with N
// attachments appears as N rows sharing MessageID; grouping happens in the
// poll engine, not here.
type MessageRow struct {
	MessageID      int64
	Text           string
	Date           AppleTime
	Sender         string
	ChatID         int64
	ChatIdentifier string
	DisplayName    string
	AssociatedType int64
	AttachmentID   int64
	AttachmentPath string
	AttachmentMime string
}

// rowColumns is the exact column count produced by the range query. Scan
// order below must match the SELECT list in query.go.
const rowColumns = 11

func scanMessageRow(rows *sql.Rows) (MessageRow, error) {
	var r MessageRow
	var rawDate int64
	err := rows.Scan(
		&r.MessageID,
		&r.Text,
		&rawDate,
		&r.Sender,
		&r.ChatID,
		&r.ChatIdentifier,
		&r.DisplayName,
		&r.AssociatedType,
		&r.AttachmentID,
		&r.AttachmentPath,
		&r.AttachmentMime,
	)
	if err != nil {
		return MessageRow{}, fmt.Errorf("scan message row: %w", err)
	}
	r.Date = FromRaw(rawDate)
	r.Text = strings.ToValidUTF8(r.Text, "")
	return r, nil
}

// IsGroupIdentifier reports whether a chat identifier names a group
// conversation rather than a single handle.
func IsGroupIdentifier(id string) bool {
	return strings.HasPrefix(id, "chat") && !strings.Contains(id, "@")
}
