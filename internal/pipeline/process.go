package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"movedesk/internal"
	"movedesk/internal/config"
	"movedesk/internal/storage"
)

// DescriptionParser is the upstream boundary the processing service feeds
// extracted inventory text into.
type DescriptionParser interface {
	ParseDescription(ctx context.Context, orderID, text string) (internal.ParseResult, error)
}

// ProcessingService turns fetched intake messages into stored order drafts:
// extract inventory text, detect whether the mail is a move request at all,
// parse, persist items and clarification seeds.
type ProcessingService struct {
	db     *storage.DB
	parser DescriptionParser
	cfg    config.Config
	log    *zap.Logger
}

func NewProcessingService(db *storage.DB, parser DescriptionParser, cfg config.Config, log *zap.Logger) *ProcessingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProcessingService{db: db, parser: parser, cfg: cfg, log: log}
}

type ProcessOutcome struct {
	MessageID      int
	DraftID        string
	Items          int
	Clarifications int
	Skipped        bool
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessOutcome, error) {
	msg, err := s.db.GetMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessOutcome{}, err
	}
	if msg == nil {
		return ProcessOutcome{}, &MessageNotFoundError{Provider: provider, MessageID: messageID}
	}
	return s.ProcessMessage(ctx, *msg)
}

// ProcessPending walks fetched messages in arrival order. One broken message
// stops the batch so the operator sees it instead of silently losing mail.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListMessagesByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}

	processed := 0
	drafts := 0
	for _, msg := range pending {
		if provider != "" && msg.Provider != provider {
			continue
		}
		outcome, err := s.ProcessMessage(ctx, msg)
		if err != nil {
			return processed, drafts, err
		}
		processed++
		if !outcome.Skipped {
			drafts++
		}
	}
	return processed, drafts, nil
}

func (s *ProcessingService) ProcessMessage(ctx context.Context, msg internal.MessageRow) (ProcessOutcome, error) {
	start := time.Now()
	trace := uuid.NewString()
	log := s.log.With(zap.String("trace", trace), zap.Int("messageId", msg.ID))

	raw, err := os.ReadFile(msg.RawRef)
	if err != nil {
		return ProcessOutcome{}, err
	}

	mail, err := ExtractDescription(raw)
	if err != nil {
		return ProcessOutcome{}, err
	}

	detect := DetectMoveRequest(firstNonEmpty(mail.Subject, msg.Subject), mail.Text, mail.HTML, mail.AttachmentNames)
	if !detect.IsMoveRequest || len(mail.Lines) == 0 {
		if err := s.db.UpdateMessageStatus(msg.ID, "skipped"); err != nil {
			return ProcessOutcome{}, err
		}
		log.Info("message skipped",
			zap.Float64("score", detect.Score),
			zap.Int("lines", len(mail.Lines)),
			zap.Duration("took", time.Since(start)))
		return ProcessOutcome{MessageID: msg.ID, Skipped: true}, nil
	}

	orderID := uuid.NewString()
	result, err := s.parser.ParseDescription(ctx, orderID, mail.Description())
	if err != nil {
		return ProcessOutcome{}, err
	}

	status := internal.DraftReady
	if len(result.VariantClarifications) > 0 {
		status = internal.DraftNeedsClarification
	}

	draft := internal.DraftRow{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		MessageID: &msg.ID,
		SeedID:    result.SeedID,
		Summary:   result.Summary,
		Status:    status,
	}
	if err := s.db.SaveDraft(draft, result.Items, result.VariantClarifications); err != nil {
		return ProcessOutcome{}, err
	}
	if err := s.db.UpdateMessageStatus(msg.ID, "processed"); err != nil {
		return ProcessOutcome{}, err
	}
	_ = s.db.SetMetadata("lastProcessedAt", time.Now().UTC().Format(time.RFC3339))

	log.Info("draft created",
		zap.String("draftId", draft.ID),
		zap.String("orderId", orderID),
		zap.Int("items", len(result.Items)),
		zap.Int("clarifications", len(result.VariantClarifications)),
		zap.Duration("took", time.Since(start)))

	return ProcessOutcome{
		MessageID:      msg.ID,
		DraftID:        draft.ID,
		Items:          len(result.Items),
		Clarifications: len(result.VariantClarifications),
	}, nil
}

type MessageNotFoundError struct {
	Provider  string
	MessageID string
}

func (e *MessageNotFoundError) Error() string {
	return "message not found: provider=" + e.Provider + " messageId=" + e.MessageID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
