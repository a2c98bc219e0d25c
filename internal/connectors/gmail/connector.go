package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"movedesk/internal"
	"movedesk/internal/config"
	"movedesk/internal/connectors"
)

// Connector reads the intake mailbox through the Gmail API with a refresh
// token; no interactive auth flow at runtime. The allowed-senders and
// lookback settings become part of the Gmail search query, so filtered mail
// is never downloaded at all.
type Connector struct {
	service      *gmail.Service
	senders      connectors.SenderFilter
	lookbackDays int
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{
		service:      svc,
		senders:      connectors.NewSenderFilter(cfg.MailAllowedSenders),
		lookbackDays: cfg.MailLookbackDays,
	}, nil
}

func (c *Connector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	listCall := c.service.Users.Messages.List("me").LabelIds(label).MaxResults(int64(max))
	if query := buildQuery(c.senders, c.lookbackDays); query != "" {
		listCall = listCall.Q(query)
	}
	listResp, err := listCall.Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}

		rawResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("raw").Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		rawBytes, err := decodeRawPayload(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		// Headers come out of the raw message itself; a second metadata
		// round-trip per message is not worth it at intake volumes.
		head := headersFromRaw(rawBytes)
		// Gmail query matching is best-effort; the filter decides.
		if !c.senders.Admit(head.from) {
			continue
		}

		messageID := head.messageID
		if messageID == "" {
			messageID = msgRef.Id
		}

		out = append(out, internal.FetchedMailMessage{
			Provider:   "gmail",
			MessageID:  messageID,
			Subject:    head.subject,
			From:       head.from,
			ReceivedAt: head.date.UTC().Format(time.RFC3339),
			Raw:        rawBytes,
		})
	}

	return out, nil
}

// buildQuery turns the intake settings into a Gmail search expression, e.g.
// `newer_than:30d from:(leads@moves.example OR partner.example)`.
func buildQuery(senders connectors.SenderFilter, lookbackDays int) string {
	var parts []string
	if lookbackDays > 0 {
		parts = append(parts, fmt.Sprintf("newer_than:%dd", lookbackDays))
	}
	if list := senders.Senders(); len(list) > 0 {
		parts = append(parts, "from:("+strings.Join(list, " OR ")+")")
	}
	return strings.Join(parts, " ")
}

type messageHeaders struct {
	subject   string
	from      string
	messageID string
	date      time.Time
}

// headersFromRaw extracts the intake-relevant headers from a raw RFC 822
// message. Unparsable mail still gets fetched; the fields just stay empty and
// the date falls back to the fetch time.
func headersFromRaw(raw []byte) messageHeaders {
	head := messageHeaders{date: time.Now().UTC()}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return head
	}
	head.subject = msg.Header.Get("Subject")
	head.from = msg.Header.Get("From")
	head.messageID = strings.Trim(msg.Header.Get("Message-ID"), "<>")
	if parsed, err := msg.Header.Date(); err == nil {
		head.date = parsed
	}
	return head
}

func decodeRawPayload(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
