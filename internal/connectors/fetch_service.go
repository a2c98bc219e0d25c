package connectors

import (
	"go.uber.org/zap"

	"movedesk/internal/storage"
)

// FetchService pulls a batch from the configured mailbox and lands it in the
// raw store.
type FetchService struct {
	connector MailConnector
	store     *RawMailStore
	log       *zap.Logger
}

type FetchResult struct {
	Fetched    int
	Stored     int
	Duplicates int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FetchService{
		connector: connector,
		store:     NewRawMailStore(db, rawMailDir),
		log:       log,
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, isNew, err := s.store.Store(msg)
		if err != nil {
			return result, err
		}
		result.Stored++
		if !isNew {
			result.Duplicates++
		}
		s.log.Debug("message stored",
			zap.Int("id", row.ID),
			zap.String("provider", msg.Provider),
			zap.Bool("new", isNew))
	}

	return result, nil
}
