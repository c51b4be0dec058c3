package services

import (
	"context"
	"fmt"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

// TemplateConfig describes one approved WhatsApp template.
type TemplateConfig struct {
	// Name is the Cloud API template name.
	Name string
	// SID is the Twilio content SID of the same template.
	SID         string
	Description string
	Parameters  []string
	Language    string
}

// Template names.
const (
	TemplateSessionExpired = "session_expired"
	TemplateWelcome        = "welcome_message"
	TemplateDailyReminder  = "daily_horoscope_reminder"
)

// WhatsAppTemplates maps logical template names to provider templates.
var WhatsAppTemplates = map[string]TemplateConfig{
	TemplateSessionExpired: {
		Name:        "astro_session_expired",
		SID:         "HX50694296a3c4c48b625930edb62816c6",
		Description: "Session timeout notification",
		Parameters:  []string{"flow"},
	},
	TemplateWelcome: {
		Name:        "astro_welcome",
		SID:         "HX44dec15f87f391428a523a9c4bddd83d",
		Description: "Welcome message",
		Parameters:  []string{"name"},
	},
	TemplateDailyReminder: {
		Name:        "astro_daily_reminder",
		SID:         "HX5ff9d491eb8f769b6d26d4e5f27e1f05",
		Description: "Daily horoscope nudge",
		Parameters:  []string{"name", "sign"},
	},
}

// TemplateService sends templates through a Sender. Templates are needed to
// reach users outside the 24h customer service window.
type TemplateService struct {
	sender    Sender
	useSID    bool
	templates map[string]TemplateConfig
}

// NewTemplateService creates a template service. useContentSID selects the
// Twilio content SID instead of the Cloud API template name.
func NewTemplateService(sender Sender, useContentSID bool) *TemplateService {
	return &TemplateService{
		sender:    sender,
		useSID:    useContentSID,
		templates: WhatsAppTemplates,
	}
}

// Build resolves a logical template into an outbound message.
func (ts *TemplateService) Build(to, templateName string, params map[string]string) (models.OutboundMessage, error) {
	template, exists := ts.templates[templateName]
	if !exists {
		return models.OutboundMessage{}, fmt.Errorf("template '%s' not found", templateName)
	}

	for _, requiredParam := range template.Parameters {
		if _, ok := params[requiredParam]; !ok {
			return models.OutboundMessage{}, fmt.Errorf("missing required parameter: %s", requiredParam)
		}
	}

	// Providers use positional variables: {{1}}, {{2}}, ...
	variables := make(map[string]string, len(template.Parameters))
	for i, paramName := range template.Parameters {
		variables[fmt.Sprintf("%d", i+1)] = params[paramName]
	}

	name := template.Name
	if ts.useSID {
		name = template.SID
	}
	return models.OutboundMessage{
		To:             to,
		Type:           models.OutboundTemplate,
		TemplateName:   name,
		TemplateParams: variables,
		Language:       template.Language,
	}, nil
}

// SendTemplate sends a template with parameters.
func (ts *TemplateService) SendTemplate(ctx context.Context, to, templateName string, params map[string]string) error {
	msg, err := ts.Build(to, templateName, params)
	if err != nil {
		return err
	}
	return ts.sender.Send(ctx, msg)
}

// GetTemplateInfo returns information about a template.
func (ts *TemplateService) GetTemplateInfo(templateName string) (*TemplateConfig, error) {
	template, exists := ts.templates[templateName]
	if !exists {
		return nil, fmt.Errorf("template '%s' not found", templateName)
	}
	return &template, nil
}
