package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"movedesk/internal"
	"movedesk/internal/storage"
)

// RawMailStore keeps the original .eml bytes on disk, addressed by content
// hash, and registers each message in the intake table. The raw file is the
// source of truth for re-processing; the row only carries a reference.
type RawMailStore struct {
	db         *storage.DB
	rawMailDir string
}

func NewRawMailStore(db *storage.DB, rawMailDir string) *RawMailStore {
	return &RawMailStore{db: db, rawMailDir: rawMailDir}
}

// Store persists one fetched message. The second return reports whether the
// message was new; re-fetching an already stored message refreshes the row but
// never duplicates it.
func (s *RawMailStore) Store(msg internal.FetchedMailMessage) (internal.MessageRow, bool, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	existing, err := s.db.GetMessageByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.MessageRow{}, false, err
	}

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.MessageRow{}, false, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.MessageRow{}, false, err
		}
	}

	row, err := s.db.UpsertMessage(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	if err != nil {
		return internal.MessageRow{}, false, err
	}
	return row, existing == nil, nil
}
