package mail

import (
	"context"
	"log"
)

// LogMailer writes outgoing mail to the process log instead of a delivery
// provider. Swap it for a real implementation of domain.Mailer in
// production wiring.
type LogMailer struct {
	From string
}

func NewLogMailer(from string) *LogMailer {
	return &LogMailer{From: from}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("mail: from=%s to=%s subject=%q body=%q", m.From, to, subject, body)
	return nil
}
