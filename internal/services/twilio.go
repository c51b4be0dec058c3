package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

// TwilioMessenger is the part of the Twilio REST client we use.
type TwilioMessenger interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers messages through Twilio's WhatsApp API.
type TwilioSender struct {
	api  TwilioMessenger
	from string
}

// NewTwilioSender creates a sender. from is the Twilio WhatsApp number,
// with or without the "whatsapp:" prefix.
func NewTwilioSender(accountSid, authToken, from string) (*TwilioSender, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return NewTwilioSenderWithAPI(client.Api, from), nil
}

// NewTwilioSenderWithAPI wraps an existing messages API.
func NewTwilioSenderWithAPI(api TwilioMessenger, from string) *TwilioSender {
	return &TwilioSender{api: api, from: whatsappAddress(from)}
}

func whatsappAddress(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}

// Params builds the Twilio request for msg. msg must already be prepared.
// Templates are Twilio content templates: TemplateName holds the content SID.
func (t *TwilioSender) Params(msg models.OutboundMessage) (*twilioApi.CreateMessageParams, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(msg.To))

	switch msg.Type {
	case models.OutboundText, "":
		params.SetBody(msg.Text)

	case models.OutboundMedia:
		if msg.MediaURL == "" {
			return nil, fmt.Errorf("media message without url")
		}
		params.SetMediaUrl([]string{msg.MediaURL})
		if msg.Caption != "" {
			params.SetBody(msg.Caption)
		}

	case models.OutboundTemplate:
		if msg.TemplateName == "" {
			return nil, fmt.Errorf("template message without content sid")
		}
		params.SetContentSid(msg.TemplateName)
		if len(msg.TemplateParams) > 0 {
			variables, err := json.Marshal(msg.TemplateParams)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal content variables: %w", err)
			}
			params.SetContentVariables(string(variables))
		}

	default:
		return nil, fmt.Errorf("unsupported outbound type %q", msg.Type)
	}
	return params, nil
}

// Send delivers one message. The Twilio client has no context support, so
// ctx is only checked before the call.
func (t *TwilioSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg = Prepare(msg)
	params, err := t.Params(msg)
	if err != nil {
		return err
	}

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		message := ""
		if resp.ErrorMessage != nil {
			message = *resp.ErrorMessage
		}
		return &APIError{Code: int64(*resp.ErrorCode), Message: message}
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Debug().Str("phone", msg.To).Str("sid", sid).Msg("Twilio message sent")
	return nil
}
