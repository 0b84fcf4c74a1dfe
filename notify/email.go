package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailNotifier sends notifications over SMTP. Manual-merge escalations
// ride this transport.
type EmailNotifier struct {
	Addr string // host:port of the SMTP server
	From string
	To   []string
	Auth smtp.Auth

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an email notifier. auth may be nil for
// unauthenticated relays.
func NewEmailNotifier(addr, from string, to []string, auth smtp.Auth) *EmailNotifier {
	return &EmailNotifier{
		Addr: addr,
		From: from,
		To:   to,
		Auth: auth,
		send: smtp.SendMail,
	}
}

// Notify implements Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, event Event) error {
	subject := fmt.Sprintf("[%s] %s %s", strings.ToUpper(event.Severity), event.IssueID, event.Type)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(event.Message)
	msg.WriteString("\r\n")
	if event.RunID != "" {
		fmt.Fprintf(&msg, "\r\nRun: %s\r\n", event.RunID)
	}
	if event.Stage != "" {
		fmt.Fprintf(&msg, "Stage: %s\r\n", event.Stage)
	}

	if err := n.send(n.Addr, n.Auth, n.From, n.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
