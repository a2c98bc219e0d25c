package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"movedesk/internal"
	"movedesk/internal/backend"
	"movedesk/internal/clarify"
	"movedesk/internal/config"
	"movedesk/internal/connectors"
	gmailconnector "movedesk/internal/connectors/gmail"
	imapconnector "movedesk/internal/connectors/imap"
	"movedesk/internal/listener"
	"movedesk/internal/pipeline"
	"movedesk/internal/storage"
	"movedesk/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailProvider, "gmail|imap")
		label := fs.String("label", cfg.MailLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, nil)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d duplicates=%d\n", *provider, result.Fetched, result.Stored, result.Duplicates)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		client := backend.NewClient(cfg, nil)
		processor := pipeline.NewProcessingService(db, client, cfg, nil)
		if strings.TrimSpace(*messageID) != "" {
			outcome, err := processor.ProcessByProviderMessageID(context.Background(), *provider, *messageID)
			must(err)
			printOutcome(outcome)
			return
		}
		processed, drafts, err := processor.ProcessPending(context.Background(), *batch, *provider)
		must(err)
		fmt.Printf("processed pending messages=%d drafts=%d\n", processed, drafts)
	case "mail:listen":
		log, err := zap.NewProduction()
		must(err)
		defer func() { _ = log.Sync() }()
		s := listener.NewService(db, cfg, log)
		must(s.Run(context.Background()))
	case "order:parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "raw text or file path")
		inType := fs.String("type", "text", "text|file|xlsx|pdf")
		orderID := fs.String("orderId", "", "existing order id (new draft order when empty)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		description, err := pipeline.DescriptionFromInput(*inType, *input)
		must(err)
		if strings.TrimSpace(description) == "" {
			must(fmt.Errorf("no inventory lines found in input"))
		}

		oid := strings.TrimSpace(*orderID)
		if oid == "" {
			oid = uuid.NewString()
		}
		client := backend.NewClient(cfg, nil)
		result, err := client.ParseDescription(context.Background(), oid, description)
		must(err)

		status := internal.DraftReady
		if len(result.VariantClarifications) > 0 {
			status = internal.DraftNeedsClarification
		}
		draft := internal.DraftRow{
			ID:      uuid.NewString(),
			OrderID: oid,
			SeedID:  result.SeedID,
			Summary: result.Summary,
			Status:  status,
		}
		must(db.SaveDraft(draft, result.Items, result.VariantClarifications))

		fmt.Printf("parsed draft=%s order=%s items=%d clarifications=%d\n", draft.ID, oid, len(result.Items), len(result.VariantClarifications))
		printItems(result.Items, result.VariantClarifications)
		if status == internal.DraftNeedsClarification {
			fmt.Printf("next: movedesk order:clarify --draftId=%s\n", draft.ID)
		}
	case "order:clarify":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		draftID := fs.String("draftId", "", "draft id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*draftID) == "" {
			must(fmt.Errorf("--draftId is required"))
		}

		draft, err := db.GetDraft(*draftID)
		must(err)
		if draft == nil {
			must(fmt.Errorf("draft not found: %s", *draftID))
		}
		result, err := db.LoadParseResult(draft.ID)
		must(err)

		client := backend.NewClient(cfg, nil)
		session := clarify.NewSession(draft.OrderID, result, client, cfg.Language)
		must(runClarifyWizard(session, cfg.Language, os.Stdin, os.Stdout))

		status := internal.DraftReady
		if session.QueueLen() > 0 {
			status = internal.DraftNeedsClarification
		}
		draft.Status = status
		must(db.SaveDraft(*draft, session.Items(), session.Pending()))
		fmt.Printf("draft %s saved: status=%s items=%d pending=%d\n", draft.ID, status, len(session.Items()), session.QueueLen())
	case "order:submit":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		draftID := fs.String("draftId", "", "draft id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*draftID) == "" {
			must(fmt.Errorf("--draftId is required"))
		}

		draft, err := db.GetDraft(*draftID)
		must(err)
		if draft == nil {
			must(fmt.Errorf("draft not found: %s", *draftID))
		}
		result, err := db.LoadParseResult(draft.ID)
		must(err)
		if len(result.VariantClarifications) > 0 {
			must(fmt.Errorf("draft has %d pending clarifications; run order:clarify first", len(result.VariantClarifications)))
		}

		client := backend.NewClient(cfg, nil)
		created, submitErr := clarify.SubmitItems(context.Background(), client, draft.OrderID, result.Items)
		for i, item := range created {
			_ = db.InsertSubmission(draft.ID, i, util.StringPtr(item.ID), "created", nil)
		}
		if submitErr != nil {
			_ = db.InsertSubmission(draft.ID, len(created), nil, "failed", util.StringPtr(submitErr.Error()))
			_ = db.UpdateDraftStatus(draft.ID, internal.DraftFailed)
			fmt.Printf("submitted %d of %d items before failure\n", len(created), len(result.Items))
			must(submitErr)
		}
		must(db.UpdateDraftStatus(draft.ID, internal.DraftSubmitted))
		fmt.Printf("order %s submitted: %d items\n", draft.OrderID, len(created))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		draftID := fs.String("draftId", "", "draft id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*draftID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--draftId and --out are required"))
		}
		result, err := db.LoadParseResult(*draftID)
		must(err)
		if len(result.Items) == 0 {
			must(fmt.Errorf("no items in draft %s", *draftID))
		}
		must(pipeline.ExportDraftToXLSX(result.Items, result.VariantClarifications, *out))
		fmt.Printf("exported %d items to %s\n", len(result.Items), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func printOutcome(outcome pipeline.ProcessOutcome) {
	if outcome.Skipped {
		fmt.Printf("message id=%d skipped (not a move request)\n", outcome.MessageID)
		return
	}
	fmt.Printf("processed message id=%d draft=%s items=%d clarifications=%d\n",
		outcome.MessageID, outcome.DraftID, outcome.Items, outcome.Clarifications)
}

func printItems(items []internal.ParsedItem, pending []internal.ClarificationEntry) {
	printItemsTo(os.Stdout, items, pending)
}

func printItemsTo(w io.Writer, items []internal.ParsedItem, pending []internal.ClarificationEntry) {
	pendingIdx := map[int]bool{}
	for _, e := range pending {
		pendingIdx[e.ItemIndex] = true
	}
	for i, item := range items {
		marker := " "
		if pendingIdx[i] {
			marker = "?"
		}
		price := ""
		if item.UnitPrice != nil {
			price = " @" + item.UnitPrice.String()
		}
		fmt.Fprintf(w, "  %s %dx %s%s\n", marker, item.Quantity, item.DisplayName(), price)
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: movedesk <command>")
	fmt.Println("commands:")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  order:parse --input=... [--type=text|file|xlsx|pdf] [--orderId=...]")
	fmt.Println("  order:clarify --draftId=...")
	fmt.Println("  order:submit --draftId=...")
	fmt.Println("  export:xlsx --draftId=... --out=./out/draft.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
