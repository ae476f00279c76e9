package chatdb

import "fmt"

// MaxRowsPerQuery caps a single range query. A cold checkpoint on a busy
// store would otherwise return an unbounded backlog in one tick.
const MaxRowsPerQuery = 500

const baseQuery = `
	SELECT m.ROWID,
		COALESCE(m.text, ''),
		m.date,
		COALESCE(h.id, ''),
		COALESCE(cmj.chat_id, 0),
		COALESCE(c.chat_identifier, ''),
		COALESCE(c.display_name, ''),
		COALESCE(m.associated_message_type, 0),
		%s
	FROM message m
	LEFT JOIN handle h ON h.ROWID = m.handle_id
	LEFT JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	LEFT JOIN chat c ON c.ROWID = cmj.chat_id
	%s
	WHERE m.date > ?
		AND m.is_from_me = 0
		AND (m.cache_roomnames IS NULL OR m.cache_roomnames = '')
	ORDER BY m.date ASC, %s ASC
	LIMIT ?`

// MessagesSince returns rows with a store timestamp strictly greater than
// since, ordered by timestamp then attachment store id, capped at limit
// (or MaxRowsPerQuery if limit <= 0). Self-authored rows and room-name
// cache duplicates are excluded in SQL; reaction rows and empty senders are
// the poll engine's concern.
func (db *DB) MessagesSince(since AppleTime, includeAttachments bool, limit int) ([]MessageRow, error) {
	if limit <= 0 || limit > MaxRowsPerQuery {
		limit = MaxRowsPerQuery
	}

	query := fmt.Sprintf(baseQuery,
		"0, '', ''",
		"",
		"m.ROWID")
	if includeAttachments {
		query = fmt.Sprintf(baseQuery,
			"COALESCE(a.ROWID, 0), COALESCE(a.filename, ''), COALESCE(a.mime_type, '')",
			`LEFT JOIN message_attachment_join maj ON maj.message_id = m.ROWID
	LEFT JOIN attachment a ON a.ROWID = maj.attachment_id`,
			"a.ROWID")
	}

	rows, err := db.Query(query, int64(since), limit)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) != rowColumns {
		return nil, fmt.Errorf("range query returned %d columns, want %d", len(cols), rowColumns)
	}

	var out []MessageRow
	for rows.Next() {
		r, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
