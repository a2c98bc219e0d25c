package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"movedesk/internal/backend"
	"movedesk/internal/config"
	"movedesk/internal/connectors"
	gmailconnector "movedesk/internal/connectors/gmail"
	imapconnector "movedesk/internal/connectors/imap"
	"movedesk/internal/pipeline"
	"movedesk/internal/storage"
	"movedesk/internal/util"
)

// Service is the intake daemon: on a fixed cadence it fetches new mailbox
// messages, turns them into order drafts and optionally drops a review sheet
// per draft.
type Service struct {
	db  *storage.DB
	cfg config.Config
	log *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, cfg: cfg, log: log}
}

// Run loops until the context is canceled. A failed cycle is logged and the
// next tick retries; the daemon never exits on a transient mailbox or backend
// error.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailLabel, s.cfg.ListenerFetchMax)
	if err != nil {
		return err
	}

	client := backend.NewClient(s.cfg, s.log)
	processor := pipeline.NewProcessingService(s.db, client, s.cfg, s.log)
	processed, drafts, err := processor.ProcessPending(ctx, s.cfg.ListenerBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.ListenerAutoExport {
		if err := s.exportProcessed(provider); err != nil {
			return err
		}
	}

	s.log.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", fetchResult.Fetched),
		zap.Int("stored", fetchResult.Stored),
		zap.Int("processed", processed),
		zap.Int("drafts", drafts))
	return nil
}

func (s *Service) exportProcessed(provider string) error {
	messages, err := s.db.ListMessagesByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if msg.Provider != provider {
			continue
		}
		draft, err := s.db.GetDraftByMessageID(msg.ID)
		if err != nil {
			return err
		}
		if draft == nil {
			continue
		}
		result, err := s.db.LoadParseResult(draft.ID)
		if err != nil {
			return err
		}
		if len(result.Items) == 0 {
			continue
		}

		filename := fmt.Sprintf("%d_%s.xlsx", msg.ID, util.SanitizeFilename(msg.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportDraftToXLSX(result.Items, result.VariantClarifications, outputPath); err != nil {
			return err
		}
		_ = s.db.UpdateMessageStatus(msg.ID, "exported")
	}
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
