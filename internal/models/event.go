package models

import "time"

// EventKind classifies an inbound webhook event.
type EventKind string

const (
	KindText          EventKind = "text"
	KindInteractive   EventKind = "interactive"
	KindMedia         EventKind = "media"
	KindStatus        EventKind = "status"
	KindContactUpdate EventKind = "contact_update"
	KindUnsupported   EventKind = "unsupported"
)

// InteractiveKind is the sub-type of an interactive reply.
type InteractiveKind string

const (
	ButtonReply InteractiveKind = "button_reply"
	ListReply   InteractiveKind = "list_reply"
)

// MediaKind is the sub-type of a media message.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaSticker  MediaKind = "sticker"
)

// InboundEvent is one normalized message or notification from the provider.
// It is built once per webhook entry and never persisted.
type InboundEvent struct {
	EventID   string
	From      string
	Kind      EventKind
	Timestamp time.Time

	// Text carries the body for text messages and the original type name
	// for unsupported ones.
	Text        string
	Interactive *InteractivePayload
	Media       *MediaPayload
	Status      *StatusPayload
	ContactName string
}

// InteractivePayload is the option picked from a button or list message.
type InteractivePayload struct {
	Kind  InteractiveKind
	ID    string
	Title string
}

// MediaPayload references provider-hosted media.
type MediaPayload struct {
	Kind     MediaKind
	ID       string
	MimeType string
	Caption  string
	Filename string
}

// StatusPayload is a delivery receipt for a message we sent.
type StatusPayload struct {
	MessageID string
	Status    string
	Recipient string
}

// Input returns the text a content handler should look at.
func (e InboundEvent) Input() string {
	switch e.Kind {
	case KindText:
		return e.Text
	case KindInteractive:
		if e.Interactive != nil {
			return e.Interactive.ID
		}
	case KindMedia:
		if e.Media != nil {
			return e.Media.Caption
		}
	}
	return ""
}

// WithText returns a copy of the event whose text input is replaced,
// used when a menu selection is resolved to its action id.
func (e InboundEvent) WithText(text string) InboundEvent {
	e.Text = text
	return e
}

// Silent reports whether the event never produces an outbound reply.
func (e InboundEvent) Silent() bool {
	return e.Kind == KindStatus || e.Kind == KindContactUpdate
}
