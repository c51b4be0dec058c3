package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// Sender delivers outbound messages to the messaging provider.
type Sender interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider error %d (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
}

// Prepare applies the provider limits: newline normalization, control
// character removal, and truncation of text bodies and captions.
func Prepare(msg models.OutboundMessage) models.OutboundMessage {
	msg.To = utils.NormalizePhone(msg.To)
	msg.Text = utils.SanitizeText(msg.Text, utils.MaxTextLength)
	msg.Caption = utils.SanitizeText(msg.Caption, utils.MaxCaptionLength)
	return msg
}

// OrderedParams returns template parameters sorted by their numeric key.
func OrderedParams(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = params[k]
	}
	return values
}

// CloudSender talks to the WhatsApp Cloud API.
type CloudSender struct {
	client        *http.Client
	baseURL       string
	version       string
	phoneNumberID string
	accessToken   string
}

// NewCloudSender creates a Cloud API sender.
func NewCloudSender(baseURL, version, phoneNumberID, accessToken string) *CloudSender {
	return &CloudSender{
		client:        &http.Client{Timeout: 15 * time.Second},
		baseURL:       strings.TrimRight(baseURL, "/"),
		version:       version,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
	}
}

func (s *CloudSender) endpoint() string {
	return fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.version, s.phoneNumberID)
}

// Payload builds the request body for msg. msg must already be prepared.
func (s *CloudSender) Payload(msg models.OutboundMessage) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.To,
	}

	switch msg.Type {
	case models.OutboundText, "":
		payload["type"] = "text"
		payload["text"] = map[string]interface{}{"body": msg.Text, "preview_url": false}

	case models.OutboundMedia:
		if msg.MediaURL == "" {
			return nil, fmt.Errorf("media message without url")
		}
		kind := string(msg.MediaKind)
		if kind == "" {
			kind = string(models.MediaImage)
		}
		media := map[string]interface{}{"link": msg.MediaURL}
		if msg.Caption != "" && msg.MediaKind != models.MediaAudio && msg.MediaKind != models.MediaSticker {
			media["caption"] = msg.Caption
		}
		if msg.Filename != "" && msg.MediaKind == models.MediaDocument {
			media["filename"] = msg.Filename
		}
		payload["type"] = kind
		payload[kind] = media

	case models.OutboundTemplate:
		if msg.TemplateName == "" {
			return nil, fmt.Errorf("template message without name")
		}
		lang := msg.Language
		if lang == "" {
			lang = "en"
		}
		template := map[string]interface{}{
			"name":     msg.TemplateName,
			"language": map[string]string{"code": lang},
		}
		if values := OrderedParams(msg.TemplateParams); len(values) > 0 {
			params := make([]map[string]string, len(values))
			for i, v := range values {
				params[i] = map[string]string{"type": "text", "text": v}
			}
			template["components"] = []map[string]interface{}{{"type": "body", "parameters": params}}
		}
		payload["type"] = "template"
		payload["template"] = template

	default:
		return nil, fmt.Errorf("unsupported outbound type %q", msg.Type)
	}
	return payload, nil
}

// Send posts one message.
func (s *CloudSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	msg = Prepare(msg)
	payload, err := s.Payload(msg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		if e := gjson.GetBytes(respBody, "error"); e.Exists() {
			apiErr.Code = e.Get("code").Int()
			apiErr.Message = e.Get("message").String()
		}
		return apiErr
	}

	logger.Debug().
		Str("phone", msg.To).
		Str("type", string(msg.Type)).
		Str("provider_message_id", gjson.GetBytes(respBody, "messages.0.id").String()).
		Msg("Message sent")
	return nil
}
