package chatdb

import "database/sql"

// ChatGUIDForRowID resolves the store's internal numeric chat id to its
// stable GUID. Numeric row ids are not reliable addressing targets for the
// automation layer, so callers replace them with the GUID when this
// succeeds. Returns "" with no error when the id is unknown.
func (db *DB) ChatGUIDForRowID(id int64) (string, error) {
	var guid string
	err := db.QueryRow(`SELECT guid FROM chat WHERE ROWID = ?`, id).Scan(&guid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return guid, nil
}
