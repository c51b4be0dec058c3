package models

// OutboundType is the kind of message sent to the provider.
type OutboundType string

const (
	OutboundText     OutboundType = "text"
	OutboundMedia    OutboundType = "media"
	OutboundTemplate OutboundType = "template"
)

// OutboundMessage is one message to deliver to a user.
type OutboundMessage struct {
	To   string
	Type OutboundType

	Text string

	MediaKind MediaKind
	MediaURL  string
	Caption   string
	Filename  string

	TemplateName   string
	TemplateParams map[string]string
	Language       string
}

// TextMessage builds a plain text message.
func TextMessage(to, body string) OutboundMessage {
	return OutboundMessage{To: to, Type: OutboundText, Text: body}
}
