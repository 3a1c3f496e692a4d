package interfaces

import "context"

// Attachment is a file attached to an outgoing notification.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notifier delivers operator notifications. Delivery is best-effort:
// callers log and continue on failure, the pipeline never blocks on a
// notification.
type Notifier interface {
	// Alert sends a short operator alert (pipeline failures, fatal errors)
	Alert(ctx context.Context, subject, body string) error

	// SendDigest sends a markdown digest rendered as an HTML email with
	// optional attachments
	SendDigest(ctx context.Context, subject, markdown string, attachments []Attachment) error
}
