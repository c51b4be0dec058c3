package webhook

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// ErrInvalidPayload is returned for bodies without the entry container.
var ErrInvalidPayload = errors.New("invalid payload")

// Verification handshake query parameters.
const (
	ParamMode        = "hub.mode"
	ParamVerifyToken = "hub.verify_token"
	ParamChallenge   = "hub.challenge"

	modeSubscribe = "subscribe"
)

// Challenge is the outcome of a verification handshake.
type Challenge struct {
	Accepted bool
	Echo     string
}

// VerifyChallenge accepts the handshake only when mode is subscribe and the
// verify token matches expectedToken exactly. The challenge is echoed verbatim.
func VerifyChallenge(params map[string]string, expectedToken string) Challenge {
	token := params[ParamVerifyToken]
	if expectedToken == "" || params[ParamMode] != modeSubscribe {
		return Challenge{}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
		return Challenge{}
	}
	return Challenge{Accepted: true, Echo: params[ParamChallenge]}
}

// ParseEntries turns a webhook body into events in delivery order.
// An empty object is a liveness probe and yields no events. A body without an
// entry array is rejected. Changes without a value are skipped.
func ParseEntries(body []byte) ([]models.InboundEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrInvalidPayload
	}
	if len(root.Map()) == 0 {
		return nil, nil
	}

	entries := root.Get("entry")
	if !entries.IsArray() {
		return nil, ErrInvalidPayload
	}

	var events []models.InboundEvent
	for _, entry := range entries.Array() {
		for _, change := range entry.Get("changes").Array() {
			value := change.Get("value")
			if !value.IsObject() {
				continue
			}
			events = append(events, parseValue(value)...)
		}
	}
	return events, nil
}

func parseValue(value gjson.Result) []models.InboundEvent {
	var events []models.InboundEvent

	names := make(map[string]string)
	for _, c := range value.Get("contacts").Array() {
		names[c.Get("wa_id").String()] = c.Get("profile.name").String()
	}

	messages := value.Get("messages").Array()
	for _, m := range messages {
		ev := parseMessage(m)
		ev.ContactName = names[m.Get("from").String()]
		events = append(events, ev)
	}

	for _, s := range value.Get("statuses").Array() {
		id := s.Get("id").String()
		status := s.Get("status").String()
		events = append(events, models.InboundEvent{
			EventID:   id + ":" + status,
			From:      utils.NormalizePhone(s.Get("recipient_id").String()),
			Kind:      models.KindStatus,
			Timestamp: parseTimestamp(s.Get("timestamp")),
			Status: &models.StatusPayload{
				MessageID: id,
				Status:    status,
				Recipient: s.Get("recipient_id").String(),
			},
		})
	}

	// Contacts without messages are profile updates.
	if len(messages) == 0 {
		for _, c := range value.Get("contacts").Array() {
			waID, name := c.Get("wa_id").String(), c.Get("profile.name").String()
			events = append(events, models.InboundEvent{
				EventID:     "contact:" + waID + ":" + name,
				From:        utils.NormalizePhone(waID),
				Kind:        models.KindContactUpdate,
				ContactName: name,
			})
		}
	}

	return events
}

func parseMessage(m gjson.Result) models.InboundEvent {
	ev := models.InboundEvent{
		EventID:   m.Get("id").String(),
		From:      utils.NormalizePhone(m.Get("from").String()),
		Timestamp: parseTimestamp(m.Get("timestamp")),
	}

	msgType := m.Get("type").String()
	switch msgType {
	case "text":
		ev.Kind = models.KindText
		ev.Text = m.Get("text.body").String()

	case "interactive":
		reply := m.Get("interactive")
		kind := models.InteractiveKind(reply.Get("type").String())
		if kind != models.ButtonReply && kind != models.ListReply {
			ev.Kind = models.KindUnsupported
			ev.Text = "interactive:" + string(kind)
			return ev
		}
		ev.Kind = models.KindInteractive
		ev.Interactive = &models.InteractivePayload{
			Kind:  kind,
			ID:    reply.Get(string(kind) + ".id").String(),
			Title: reply.Get(string(kind) + ".title").String(),
		}

	case "button":
		// Quick-reply buttons on template messages.
		ev.Kind = models.KindInteractive
		ev.Interactive = &models.InteractivePayload{
			Kind:  models.ButtonReply,
			ID:    m.Get("button.payload").String(),
			Title: m.Get("button.text").String(),
		}

	case "image", "video", "audio", "document", "sticker":
		media := m.Get(msgType)
		ev.Kind = models.KindMedia
		ev.Media = &models.MediaPayload{
			Kind:     models.MediaKind(msgType),
			ID:       media.Get("id").String(),
			MimeType: media.Get("mime_type").String(),
			Caption:  media.Get("caption").String(),
			Filename: media.Get("filename").String(),
		}

	case "system":
		ev.Kind = models.KindContactUpdate
		ev.Text = m.Get("system.body").String()

	default:
		ev.Kind = models.KindUnsupported
		ev.Text = msgType
	}

	return ev
}

func parseTimestamp(r gjson.Result) time.Time {
	sec, err := strconv.ParseInt(r.String(), 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
