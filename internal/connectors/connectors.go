package connectors

import "movedesk/internal"

// MailConnector fetches candidate intake mail from one mailbox provider.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
