// Package mail defines the transactional email contract and renders the
// messages the gateway sends.
package mail

import "context"

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Attachment references a hosted file by URL; providers fetch it themselves.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Message struct {
	From        Recipient
	To          []Recipient
	Subject     string
	HTMLContent string
	Attachments []Attachment
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
