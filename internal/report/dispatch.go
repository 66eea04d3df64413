package report

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

// DefaultSubject is used when a dispatch has no subject.
const DefaultSubject = "Your Expense Report"

// DefaultBody is the HTML body accompanying the attachment.
const DefaultBody = "<p>Please find attached your expense report.</p>"

var (
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrEmptyPayload     = errors.New("report payload is empty")
)

// Dispatch is one report e-mail.
type Dispatch struct {
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Payload     []byte `json:"payload"`
}

// Validate normalizes the dispatch and checks that it can be sent.
func (d *Dispatch) Validate() error {
	addr, err := mail.ParseAddress(strings.TrimSpace(d.Recipient))
	if err != nil {
		return ErrInvalidRecipient
	}
	d.Recipient = addr.Address
	if len(d.Payload) == 0 {
		return ErrEmptyPayload
	}
	if strings.TrimSpace(d.Subject) == "" {
		d.Subject = DefaultSubject
	}
	if d.Body == "" {
		d.Body = DefaultBody
	}
	if d.Filename == "" {
		d.Filename = Filename(FormatCSV, time.Now())
	}
	if d.ContentType == "" {
		d.ContentType = "application/octet-stream"
	}
	return nil
}

// Mailer delivers report e-mails.
type Mailer interface {
	Send(ctx context.Context, d Dispatch) error
}

// NewDispatch renders rep with exp and addresses it to recipient.
func NewDispatch(rep Report, exp Exporter, recipient, subject string) (Dispatch, error) {
	var buf bytes.Buffer
	if err := exp.Export(&buf, rep); err != nil {
		return Dispatch{}, err
	}
	if strings.TrimSpace(subject) == "" {
		subject = rep.Subject()
	}
	d := Dispatch{
		Recipient:   recipient,
		Subject:     subject,
		Filename:    Filename(exp.Format(), rep.GeneratedAt),
		ContentType: exp.ContentType(),
		Payload:     buf.Bytes(),
	}
	if err := d.Validate(); err != nil {
		return Dispatch{}, err
	}
	return d, nil
}
