// Package delivery forwards archive batches to a chat.
//
// Delivery is best-effort and at-most-once: every send is attempted once,
// its outcome is reported and logged, and a failure never stops the sends
// that follow it.
package delivery

import (
	"context"
	"html"
	"log/slog"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
)

// Sender is the messaging collaborator.
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, path string) error
	SendVideo(ctx context.Context, chatID, path string) error
}

// Kind identifies what a send carried.
type Kind string

const (
	KindHeader Kind = "header"
	KindPhoto  Kind = "photo"
	KindVideo  Kind = "video"
)

// Result is the outcome of one send.
type Result struct {
	Kind Kind
	Path string
	Err  error
}

// OK reports whether the send succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report collects the results of delivering one batch.
type Report struct {
	Source  string
	Results []Result
}

// Sent returns the number of successful sends.
func (r Report) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed sends.
func (r Report) Failed() int {
	return len(r.Results) - r.Sent()
}

// Dispatcher delivers batches to one chat.
type Dispatcher struct {
	sender        Sender
	chatID        string
	announceEmpty bool
	logger        *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAnnounceEmpty controls whether a batch without items still sends its
// header. Enabled by default so operators see that a target was checked.
func WithAnnounceEmpty(announce bool) Option {
	return func(d *Dispatcher) {
		d.announceEmpty = announce
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher sending to chatID.
func NewDispatcher(sender Sender, chatID string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:        sender,
		chatID:        chatID,
		announceEmpty: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Header is the text announcing a batch.
func Header(sourceName string) string {
	return "New stories from <b>" + html.EscapeString(sourceName) + "</b>"
}

// Deliver sends the batch header followed by each item in order.
func (d *Dispatcher) Deliver(ctx context.Context, batch archive.Batch) Report {
	report := Report{Source: batch.SourceName}

	if len(batch.Items) > 0 || d.announceEmpty {
		err := d.sender.SendText(ctx, d.chatID, Header(batch.SourceName))
		report.Results = append(report.Results, d.record(batch.SourceName, Result{Kind: KindHeader, Err: err}))
	}

	for _, item := range batch.Items {
		var err error
		kind := KindVideo
		if item.Kind() == archive.MediaPhoto {
			kind = KindPhoto
			err = d.sender.SendPhoto(ctx, d.chatID, item.LocalPath)
		} else {
			err = d.sender.SendVideo(ctx, d.chatID, item.LocalPath)
		}
		report.Results = append(report.Results, d.record(batch.SourceName, Result{Kind: kind, Path: item.LocalPath, Err: err}))
	}

	return report
}

func (d *Dispatcher) record(source string, res Result) Result {
	if res.Err != nil {
		d.logger.Warn("Delivery failed", "target", source, "kind", res.Kind, "path", res.Path, "error", res.Err)
	}
	return res
}
