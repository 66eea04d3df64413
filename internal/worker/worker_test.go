package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"spendmind/internal/amqp"
	"spendmind/internal/log"
	"spendmind/internal/report"
)

type recordingMailer struct {
	sent []report.Dispatch
	err  error
}

func (m *recordingMailer) Send(_ context.Context, d report.Dispatch) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, d)
	return nil
}

func job(recipient string) *amqp.ReportEmailJob {
	return amqp.NewReportEmailJob("owner-1", report.Dispatch{
		Recipient:   recipient,
		Filename:    "Expense_Report_2025-03-15.csv",
		ContentType: "text/csv; charset=utf-8",
		Payload:     []byte("Date,Description\n2025-03-02,Bus\n"),
	})
}

func TestHandleReportEmail(t *testing.T) {
	m := &recordingMailer{}
	w := NewEmailWorker(m, log.Nop())
	j := job("ana@example.com")

	if err := w.HandleReportEmail(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d", len(m.sent))
	}
	if m.sent[0].Subject != report.DefaultSubject {
		t.Fatalf("subject = %q", m.sent[0].Subject)
	}

	// redelivery of the same job is ignored
	if err := w.HandleReportEmail(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("redelivery sent again: %d", len(m.sent))
	}
}

func TestHandleReportEmailDropsInvalid(t *testing.T) {
	m := &recordingMailer{}
	w := NewEmailWorker(m, log.Nop())
	if err := w.HandleReportEmail(context.Background(), job("not-an-address")); err != nil {
		t.Fatalf("invalid job should be dropped, got %v", err)
	}
	if len(m.sent) != 0 {
		t.Fatal("nothing should be sent")
	}
}

func TestHandleReportEmailReturnsSendFailure(t *testing.T) {
	m := &recordingMailer{err: errors.New("connection refused")}
	w := NewEmailWorker(m, log.Nop())
	j := job("ana@example.com")
	if err := w.HandleReportEmail(context.Background(), j); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := w.Sent().Get(j.ID); ok {
		t.Fatal("failed job must not be remembered")
	}
}

func TestNewSMTPMailerValidates(t *testing.T) {
	if _, err := NewSMTPMailer(SMTPConfig{From: "a@example.com"}); err == nil {
		t.Fatal("missing host accepted")
	}
	if _, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"}); err == nil {
		t.Fatal("missing sender accepted")
	}
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "a@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if m.cfg.addr() != "smtp.example.com:587" {
		t.Fatalf("addr = %s", m.cfg.addr())
	}
}

func TestSMTPMailerSend(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p", From: "reports@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	m.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	var (
		gotAddr string
		gotTo   []string
		gotMsg  []byte
		gotAuth smtp.Auth
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, msg
		return nil
	}

	payload := bytes.Repeat([]byte("2025-03-02,Bus,Transport,2.50\n"), 10)
	err = m.Send(context.Background(), report.Dispatch{
		Recipient:   "Ana <ana@example.com>",
		Subject:     "SpendMind Report: Current Month",
		Filename:    "Expense_Report_2025-03-15.csv",
		ContentType: "text/csv; charset=utf-8",
		Payload:     payload,
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotAddr != "smtp.example.com:2525" || gotAuth == nil {
		t.Fatalf("addr=%s auth=%v", gotAddr, gotAuth)
	}
	if len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Fatalf("to = %v", gotTo)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(gotMsg))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Header.Get("Subject") != "SpendMind Report: Current Month" {
		t.Fatalf("subject = %q", msg.Header.Get("Subject"))
	}
	mt, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/mixed" {
		t.Fatalf("content type %s: %v", mt, err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	body, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	html, _ := io.ReadAll(body)
	if !strings.Contains(string(html), "attached your expense report") {
		t.Fatalf("body = %q", html)
	}

	att, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if att.FileName() != "Expense_Report_2025-03-15.csv" {
		t.Fatalf("filename = %q", att.FileName())
	}
	raw, _ := io.ReadAll(att)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(raw), "\r\n", ""))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatal("attachment does not round trip")
	}
}

func TestSMTPMailerHonorsContext(t *testing.T) {
	m, _ := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "a@example.com"})
	block := make(chan struct{})
	defer close(block)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Send(ctx, report.Dispatch{Recipient: "ana@example.com", Payload: []byte("x")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
