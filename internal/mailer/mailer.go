// Package mailer accumulates a per-repository failure report across a run
// and sends it over SMTP at close, if and only if something was attached.
package mailer

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"regexp"
	"strings"
)

// Mailer accumulates attachments for one repository's pending report.
type Mailer struct {
	repository string
	recipients []string
	from       string
	smartHost  string
	inert      bool

	subject string
	parts   []part
}

type part struct {
	desc string
	text string
}

// New creates a Mailer for repository. If recipients is empty or from is
// empty, the Mailer is inert: every method becomes a no-op, mirroring the
// Python original's `ifEmail` decorator.
func New(repository string, recipients []string, from, smartHost string) *Mailer {
	return &Mailer{
		repository: repository,
		recipients: recipients,
		from:       from,
		smartHost:  smartHost,
		inert:      len(recipients) == 0 || from == "",
		subject:    fmt.Sprintf("%s: bigitr error report", repository),
	}
}

var filenameUnsafe = regexp.MustCompile(`\s+`)
var filenameDrop = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitizeFilename(desc string) string {
	collapsed := filenameUnsafe.ReplaceAllString(desc, "_")
	dropped := filenameDrop.ReplaceAllString(collapsed, "")
	return dropped + ".txt"
}

// AddAttachment adds one text payload to the pending report.
func (m *Mailer) AddAttachment(text, desc string) {
	if m.inert {
		return
	}
	m.parts = append(m.parts, part{desc: desc, text: text})
}

// AddOutput adds a command's captured stdout and stderr as two separate
// attachments.
func (m *Mailer) AddOutput(command, stdout, stderr string) {
	if m.inert {
		return
	}
	m.AddAttachment(stderr, "errors from "+command)
	m.AddAttachment(stdout, "output from "+command)
}

// Send dispatches the accumulated report over SMTP, prepending allOut and
// allErr as the first two attachments, but only if at least one payload
// has already been attached. No-op (and returns nil) for an inert Mailer
// or one with nothing attached.
func (m *Mailer) Send(allOut, allErr string) error {
	if m.inert || len(m.parts) == 0 {
		return nil
	}
	m.parts = append([]part{
		{desc: "all output", text: allOut},
		{desc: "all errors", text: allErr},
	}, m.parts...)
	return m.send()
}

func (m *Mailer) send() error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "Subject: %s\r\n", m.subject)
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.recipients, ", "))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())
	fmt.Fprintf(&buf, "Bigitr error report for repository %s\r\n", m.repository)

	for _, p := range m.parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "text/plain; charset=utf-8")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(p.desc)))
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		pw, err := w.CreatePart(header)
		if err != nil {
			return err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.text)); err != nil {
			return err
		}
		if err := qp.Close(); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	return smtp.SendMail(m.smartHost+":25", nil, m.from, m.recipients, buf.Bytes())
}
