package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/services"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/webhook"
)

// EventProcessor routes the events of one webhook call.
type EventProcessor interface {
	ProcessEvents(ctx context.Context, events []models.InboundEvent) []services.Outcome
}

// WhatsAppHandler serves the Cloud API webhook.
type WhatsAppHandler struct {
	verifyToken string
	processor   EventProcessor
	deduper     services.Deduper
	async       bool
	timeout     time.Duration

	wg sync.WaitGroup
}

// WhatsAppOptions configures the webhook handler.
type WhatsAppOptions struct {
	VerifyToken string
	// Deduper is optional. Nil disables event id de-duplication.
	Deduper services.Deduper
	// Async acknowledges before processing.
	Async          bool
	ProcessTimeout time.Duration
}

// NewWhatsAppHandler creates a new WhatsApp handler.
func NewWhatsAppHandler(processor EventProcessor, opts WhatsAppOptions) *WhatsAppHandler {
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 2 * time.Minute
	}
	return &WhatsAppHandler{
		verifyToken: opts.VerifyToken,
		processor:   processor,
		deduper:     opts.Deduper,
		async:       opts.Async,
		timeout:     opts.ProcessTimeout,
	}
}

// Verify answers the subscription handshake.
func (h *WhatsAppHandler) Verify(c *fiber.Ctx) error {
	params := map[string]string{
		webhook.ParamMode:        c.Query(webhook.ParamMode),
		webhook.ParamVerifyToken: c.Query(webhook.ParamVerifyToken),
		webhook.ParamChallenge:   c.Query(webhook.ParamChallenge),
	}

	challenge := webhook.VerifyChallenge(params, h.verifyToken)
	if !challenge.Accepted {
		logger.Warn().Str("ip", c.IP()).Msg("Webhook verification failed")
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}

	logger.Info().Msg("Webhook verified")
	return c.Status(fiber.StatusOK).SendString(challenge.Echo)
}

// Receive acknowledges a webhook call and routes its events.
func (h *WhatsAppHandler) Receive(c *fiber.Ctx) error {
	traceID := uuid.NewString()

	events, err := webhook.ParseEntries(c.Body())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidPayload) {
			logger.Warn().Err(err).Str("trace_id", traceID).Msg("Rejected webhook payload")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid payload",
			})
		}
		return err
	}

	if len(events) == 0 {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	}

	events = h.filterDuplicates(events, traceID)
	logger.Debug().Str("trace_id", traceID).Int("events", len(events)).Msg("Webhook received")

	if len(events) > 0 {
		// Parsed events own their strings, so they outlive the request buffer.
		if h.async {
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.process(events, traceID)
			}()
		} else {
			h.process(events, traceID)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "received"})
}

// process runs detached from the request so a client abort does not stop it.
func (h *WhatsAppHandler) process(events []models.InboundEvent, traceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Str("trace_id", traceID).Msg("Panic while processing webhook")
		}
	}()

	start := time.Now()
	outcomes := h.processor.ProcessEvents(ctx, events)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	logger.Info().
		Str("trace_id", traceID).
		Int("events", len(events)).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("Webhook processed")
}

func (h *WhatsAppHandler) filterDuplicates(events []models.InboundEvent, traceID string) []models.InboundEvent {
	if h.deduper == nil {
		return events
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fresh := events[:0]
	for _, ev := range events {
		first, err := h.deduper.FirstSeen(ctx, ev.EventID)
		if err != nil {
			// Prefer a possible duplicate reply over dropping the message.
			logger.Warn().Err(err).Str("trace_id", traceID).Str("message_id", ev.EventID).Msg("Dedup check failed")
			first = true
		}
		if !first {
			logger.Info().Str("trace_id", traceID).Str("message_id", ev.EventID).Str("phone", ev.From).Msg("Skipping redelivered event")
			continue
		}
		fresh = append(fresh, ev)
	}
	return fresh
}

// Drain waits for background processing to finish or ctx to expire.
func (h *WhatsAppHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
