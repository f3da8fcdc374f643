package utils

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Outbox collects messages delivered while recording is active.
type Outbox struct {
	mu       sync.Mutex
	messages []RecordedMessage
}

// RecordedMessage is the wire form of a delivered message with its parsed
// top-level header.
type RecordedMessage struct {
	Raw    []byte
	Header mail.Header
}

// RecordedPart is one top-level MIME part of a multipart message.
type RecordedPart struct {
	ContentType string
	Params      map[string]string
	Header      message.Header
	Body        []byte
}

func (o *Outbox) add(raw []byte) {
	rec := RecordedMessage{Raw: append([]byte(nil), raw...)}
	if entity, err := message.Read(bytes.NewReader(rec.Raw)); entity != nil {
		rec.Header = mail.Header{Header: entity.Header}
	} else if err != nil {
		return
	}

	o.mu.Lock()
	o.messages = append(o.messages, rec)
	o.mu.Unlock()
}

// Len returns the number of recorded messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// Messages returns a snapshot of the recorded messages.
func (o *Outbox) Messages() []RecordedMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]RecordedMessage(nil), o.messages...)
}

// Get returns a header value, decoding RFC 2047 words when possible.
func (r RecordedMessage) Get(key string) string {
	if v, err := r.Header.Text(key); err == nil {
		return v
	}
	return r.Header.Get(key)
}

// Parts returns the top-level parts of a multipart message, or nil for a
// single-part message.
func (r RecordedMessage) Parts() ([]RecordedPart, error) {
	entity, err := message.Read(bytes.NewReader(r.Raw))
	if entity == nil {
		return nil, err
	}
	mr := entity.MultipartReader()
	if mr == nil {
		return nil, nil
	}

	var parts []RecordedPart
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && p == nil {
			return parts, err
		}
		ct, params, _ := p.Header.ContentType()
		body, err := io.ReadAll(p.Body)
		if err != nil {
			return parts, err
		}
		parts = append(parts, RecordedPart{
			ContentType: ct,
			Params:      params,
			Header:      p.Header,
			Body:        body,
		})
	}
	return parts, nil
}
