package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"movedesk/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS drafts (
  id TEXT PRIMARY KEY,
  orderId TEXT NOT NULL,
  messageId INTEGER,
  seedId TEXT NOT NULL,
  summary TEXT,
  status TEXT NOT NULL DEFAULT 'parsed',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);
CREATE INDEX IF NOT EXISTS idx_drafts_orderId ON drafts(orderId);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);

CREATE TABLE IF NOT EXISTS draft_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  draftId TEXT NOT NULL,
  position INTEGER NOT NULL,
  itemTypeId TEXT,
  nameEn TEXT,
  nameHe TEXT,
  quantity INTEGER NOT NULL,
  itemJson TEXT NOT NULL,
  UNIQUE(draftId, position),
  FOREIGN KEY(draftId) REFERENCES drafts(id)
);

CREATE TABLE IF NOT EXISTS clarification_seeds (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  draftId TEXT NOT NULL,
  itemIndex INTEGER NOT NULL,
  itemTypeId TEXT NOT NULL,
  nameEn TEXT,
  nameHe TEXT,
  questionsJson TEXT NOT NULL,
  UNIQUE(draftId, itemIndex),
  FOREIGN KEY(draftId) REFERENCES drafts(id)
);

CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  draftId TEXT NOT NULL,
  position INTEGER NOT NULL,
  orderItemId TEXT,
  status TEXT NOT NULL,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(draftId) REFERENCES drafts(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertMessage(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.MessageRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO messages (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.MessageRow{}, err
	}

	row, err := d.GetMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, errors.New("failed to upsert message")
	}
	return *row, nil
}

func (d *DB) GetMessageByProviderMessageID(provider, messageID string) (*internal.MessageRow, error) {
	var row internal.MessageRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM messages WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetMessageByID(id int) (*internal.MessageRow, error) {
	var row internal.MessageRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM messages WHERE id = ?
`, id).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListMessagesByStatus(status string, limit int) ([]internal.MessageRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM messages WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MessageRow
	for rows.Next() {
		var row internal.MessageRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMessageStatus(messageID int, status string) error {
	_, err := d.conn.Exec(`UPDATE messages SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, messageID)
	return err
}

// SaveDraft writes the draft header plus its full item and seed sets in one
// transaction, replacing whatever a previous parse round stored.
func (d *DB) SaveDraft(draft internal.DraftRow, items []internal.ParsedItem, seeds []internal.ClarificationEntry) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO drafts (id, orderId, messageId, seedId, summary, status)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  orderId=excluded.orderId,
  messageId=excluded.messageId,
  seedId=excluded.seedId,
  summary=excluded.summary,
  status=excluded.status,
  updatedAt=CURRENT_TIMESTAMP
`, draft.ID, draft.OrderID, draft.MessageID, draft.SeedID, draft.Summary, string(draft.Status)); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM draft_items WHERE draftId = ?`, draft.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM clarification_seeds WHERE draftId = ?`, draft.ID); err != nil {
		return err
	}

	itemStmt, err := tx.Prepare(`
INSERT INTO draft_items (draftId, position, itemTypeId, nameEn, nameHe, quantity, itemJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	for i, item := range items {
		itemJSON, _ := json.Marshal(item)
		if _, err := itemStmt.Exec(draft.ID, i, item.ItemTypeID, item.NameEn, item.NameHe, item.Quantity, string(itemJSON)); err != nil {
			return err
		}
	}

	seedStmt, err := tx.Prepare(`
INSERT INTO clarification_seeds (draftId, itemIndex, itemTypeId, nameEn, nameHe, questionsJson)
VALUES (?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer seedStmt.Close()

	for _, seed := range seeds {
		questionsJSON, _ := json.Marshal(seed.Questions)
		if _, err := seedStmt.Exec(draft.ID, seed.ItemIndex, seed.ItemTypeID, seed.NameEn, seed.NameHe, string(questionsJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetDraft(id string) (*internal.DraftRow, error) {
	var row internal.DraftRow
	var status string
	err := d.conn.QueryRow(`
SELECT id, orderId, messageId, seedId, summary, status FROM drafts WHERE id = ?
`, id).Scan(&row.ID, &row.OrderID, &row.MessageID, &row.SeedID, &row.Summary, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Status = internal.DraftStatus(status)
	return &row, nil
}

func (d *DB) GetDraftByMessageID(messageID int) (*internal.DraftRow, error) {
	var row internal.DraftRow
	var status string
	err := d.conn.QueryRow(`
SELECT id, orderId, messageId, seedId, summary, status
FROM drafts WHERE messageId = ? ORDER BY updatedAt DESC LIMIT 1
`, messageID).Scan(&row.ID, &row.OrderID, &row.MessageID, &row.SeedID, &row.Summary, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Status = internal.DraftStatus(status)
	return &row, nil
}

func (d *DB) GetDraftByOrderID(orderID string) (*internal.DraftRow, error) {
	var row internal.DraftRow
	var status string
	err := d.conn.QueryRow(`
SELECT id, orderId, messageId, seedId, summary, status
FROM drafts WHERE orderId = ? ORDER BY updatedAt DESC LIMIT 1
`, orderID).Scan(&row.ID, &row.OrderID, &row.MessageID, &row.SeedID, &row.Summary, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Status = internal.DraftStatus(status)
	return &row, nil
}

func (d *DB) ListDraftsByStatus(status internal.DraftStatus, limit int) ([]internal.DraftRow, error) {
	rows, err := d.conn.Query(`
SELECT id, orderId, messageId, seedId, summary, status
FROM drafts WHERE status = ? ORDER BY updatedAt ASC LIMIT ?
`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DraftRow
	for rows.Next() {
		var row internal.DraftRow
		var st string
		if err := rows.Scan(&row.ID, &row.OrderID, &row.MessageID, &row.SeedID, &row.Summary, &st); err != nil {
			return nil, err
		}
		row.Status = internal.DraftStatus(st)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDraftStatus(draftID string, status internal.DraftStatus) error {
	_, err := d.conn.Exec(`UPDATE drafts SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(status), draftID)
	return err
}

// LoadParseResult reassembles the parse result a session is rebuilt from.
func (d *DB) LoadParseResult(draftID string) (internal.ParseResult, error) {
	draft, err := d.GetDraft(draftID)
	if err != nil {
		return internal.ParseResult{}, err
	}
	if draft == nil {
		return internal.ParseResult{}, fmt.Errorf("draft not found: %s", draftID)
	}

	result := internal.ParseResult{SeedID: draft.SeedID, Summary: draft.Summary}

	itemRows, err := d.conn.Query(`SELECT itemJson FROM draft_items WHERE draftId = ? ORDER BY position ASC`, draftID)
	if err != nil {
		return internal.ParseResult{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var itemJSON string
		if err := itemRows.Scan(&itemJSON); err != nil {
			return internal.ParseResult{}, err
		}
		var item internal.ParsedItem
		if err := json.Unmarshal([]byte(itemJSON), &item); err != nil {
			return internal.ParseResult{}, fmt.Errorf("corrupt draft item in %s: %w", draftID, err)
		}
		result.Items = append(result.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return internal.ParseResult{}, err
	}

	seedRows, err := d.conn.Query(`
SELECT itemIndex, itemTypeId, nameEn, nameHe, questionsJson
FROM clarification_seeds WHERE draftId = ? ORDER BY itemIndex ASC
`, draftID)
	if err != nil {
		return internal.ParseResult{}, err
	}
	defer seedRows.Close()
	for seedRows.Next() {
		var seed internal.ClarificationEntry
		var questionsJSON string
		if err := seedRows.Scan(&seed.ItemIndex, &seed.ItemTypeID, &seed.NameEn, &seed.NameHe, &questionsJSON); err != nil {
			return internal.ParseResult{}, err
		}
		if err := json.Unmarshal([]byte(questionsJSON), &seed.Questions); err != nil {
			return internal.ParseResult{}, fmt.Errorf("corrupt clarification seed in %s: %w", draftID, err)
		}
		result.VariantClarifications = append(result.VariantClarifications, seed)
	}
	return result, seedRows.Err()
}

func (d *DB) InsertSubmission(draftID string, position int, orderItemID *string, status string, errMsg *string) error {
	_, err := d.conn.Exec(`
INSERT INTO submissions (draftId, position, orderItemId, status, error)
VALUES (?, ?, ?, ?, ?)
`, draftID, position, orderItemID, status, errMsg)
	return err
}

func (d *DB) ListSubmissions(draftID string) ([]internal.SubmissionRow, error) {
	rows, err := d.conn.Query(`
SELECT id, draftId, position, orderItemId, status, error
FROM submissions WHERE draftId = ? ORDER BY position ASC
`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SubmissionRow
	for rows.Next() {
		var row internal.SubmissionRow
		if err := rows.Scan(&row.ID, &row.DraftID, &row.Position, &row.OrderItemID, &row.Status, &row.Error); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
