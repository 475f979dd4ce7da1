package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrRejected wraps a provider's refusal of a single message.
var ErrRejected = errors.New("provider rejected message")

// Address is a display name and mailbox.
type Address struct {
	Name  string
	Email string
}

// String formats the address as "Name <email>".
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Message is one outgoing email.
type Message struct {
	From    Address
	To      string
	Subject string
	HTML    string
	Tags    map[string]string
}

// Validate checks the fields every provider requires.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.From.Email) == "":
		return errors.New("from address is required")
	case strings.TrimSpace(m.To) == "":
		return errors.New("recipient address is required")
	case strings.TrimSpace(m.Subject) == "":
		return errors.New("subject is required")
	case strings.TrimSpace(m.HTML) == "":
		return errors.New("html body is required")
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	return nil
}

// Adapter sends one message through a provider and returns the provider's
// message id. Implementations must be safe for concurrent use.
type Adapter interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, msg Message) (string, error)

// Send implements Adapter.
func (f AdapterFunc) Send(ctx context.Context, msg Message) (string, error) { return f(ctx, msg) }
