package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/content"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// Stage is a state of the per-event routing state machine.
type Stage string

const (
	StageReceived        Stage = "received"
	StageUserResolved    Stage = "user_resolved"
	StageFlowCheck       Stage = "flow_check"
	StageFlowDispatch    Stage = "flow_dispatch"
	StageCommandDispatch Stage = "command_dispatch"
	StageResponded       Stage = "responded"
	StageDone            Stage = "done"
	StageError           Stage = "error"
)

// User-facing fallback texts.
const (
	ApologyMessage        = "😔 Sorry, something went wrong on our side. Please try again in a moment."
	UnknownCommandMessage = "🤔 I didn't understand that. Type *help* to see what I can do, or *menu* for all options."
	FileReceivedMessage   = "📎 Thanks, I received your file. I can only read palm photos for now. Add the caption *palm* to get a reading."
	UnsupportedMessage    = "Sorry, this message type is not supported yet. Please send text."
)

// Outcome reports what happened to one event.
type Outcome struct {
	Stage Stage
	// Path is FlowDispatch or CommandDispatch for events that reached dispatch.
	Path    Stage
	Handler string
	Reply   string
	Sent    bool
	Err     error
}

// MessageRouter resolves the user and session for an inbound event, picks a
// flow or content handler, and sends the reply.
type MessageRouter struct {
	users    storage.UserStore
	sessions *SessionManager
	flows    *FlowEngine
	registry *content.Registry
	menus    *MenuMappingCache
	retry    *RetryExecutor
	sender   Sender

	creates singleflight.Group
	now     func() time.Time
}

// NewMessageRouter creates a router.
func NewMessageRouter(
	users storage.UserStore,
	sessions *SessionManager,
	flows *FlowEngine,
	registry *content.Registry,
	menus *MenuMappingCache,
	retry *RetryExecutor,
	sender Sender,
) *MessageRouter {
	return &MessageRouter{
		users:    users,
		sessions: sessions,
		flows:    flows,
		registry: registry,
		menus:    menus,
		retry:    retry,
		sender:   sender,
		now:      time.Now,
	}
}

// ProcessEvents routes the events of one webhook call in delivery order.
func (r *MessageRouter) ProcessEvents(ctx context.Context, events []models.InboundEvent) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for _, ev := range events {
		outcomes = append(outcomes, r.HandleEvent(ctx, ev))
	}
	return outcomes
}

// HandleEvent runs one event through the state machine. It never returns an
// error: failures become an apology to the user and a log line.
func (r *MessageRouter) HandleEvent(ctx context.Context, ev models.InboundEvent) (out Outcome) {
	log := logger.ForEvent(ev.From, ev.EventID, string(ev.Kind))
	out.Stage = StageReceived

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("stage", string(out.Stage)).Msg("Panic while routing event")
			out.Err = fmt.Errorf("panic: %v", p)
			out.Stage = StageError
			if phone := utils.NormalizePhone(ev.From); phone != "" && !out.Sent {
				out.Sent = r.sender.Send(ctx, models.TextMessage(phone, ApologyMessage)) == nil
			}
		}
	}()

	if ev.Silent() {
		r.logSilent(log, ev)
		out.Stage = StageDone
		return out
	}

	phone := utils.NormalizePhone(ev.From)
	if phone == "" {
		log.Warn().Msg("Dropping event without sender")
		out.Stage = StageDone
		return out
	}

	reply, err := r.route(ctx, log, phone, ev, &out)
	if err != nil {
		log.Error().Err(err).Str("stage", string(out.Stage)).Msg("Failed to process message")
		out.Err = err
		out.Stage = StageError
		reply = ApologyMessage
	}
	out.Reply = reply
	out.Stage = StageResponded

	r.touch(ctx, log, phone)

	if reply != "" {
		if err := r.sender.Send(ctx, models.TextMessage(phone, reply)); err != nil {
			log.Error().Err(err).Str("stage", string(StageResponded)).Msg("Failed to send reply")
			if out.Err == nil {
				out.Err = err
			}
			return out
		}
		out.Sent = true
	}
	out.Stage = StageDone
	log.Info().Str("stage", string(out.Stage)).Str("path", string(out.Path)).Str("handler", out.Handler).Msg("Message processed")
	return out
}

func (r *MessageRouter) route(ctx context.Context, log zerolog.Logger, phone string, ev models.InboundEvent, out *Outcome) (string, error) {
	user, err := r.resolveUser(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	out.Stage = StageUserResolved

	session, err := r.sessions.GetSession(ctx, phone)
	if err != nil {
		return "", err
	}
	out.Stage = StageFlowCheck

	if !user.ProfileComplete || session.InFlow() {
		out.Stage, out.Path = StageFlowDispatch, StageFlowDispatch
		log.Debug().Str("stage", string(out.Stage)).Str("flow", session.State().Name).Bool("profile_complete", user.ProfileComplete).Msg("Routing to flow")

		res, err := r.flows.Run(ctx, ev, user, session)
		if err != nil {
			return "", fmt.Errorf("run flow: %w", err)
		}
		if !res.Reroute {
			return r.applyFlowResult(ctx, phone, user, res)
		}
		if err := r.sessions.ClearFlow(ctx, phone); err != nil {
			return "", err
		}
	}

	out.Stage, out.Path = StageCommandDispatch, StageCommandDispatch
	return r.dispatchCommand(ctx, log, phone, ev, user, out)
}

// resolveUser fetches or creates the user. Concurrent first messages from one
// phone share a single create, and a duplicate-key race falls back to a fetch.
func (r *MessageRouter) resolveUser(ctx context.Context, phone string) (*models.User, error) {
	v, err, _ := r.creates.Do(phone, func() (interface{}, error) {
		user, err := r.users.GetUser(ctx, phone)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		user, err = r.users.CreateUser(ctx, phone)
		if errors.Is(err, storage.ErrDuplicate) {
			return r.users.GetUser(ctx, phone)
		}
		if err != nil {
			return nil, err
		}
		logger.Info().Str("phone", phone).Msg("New user created")
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	user := *v.(*models.User)
	return &user, nil
}

func (r *MessageRouter) applyFlowResult(ctx context.Context, phone string, user *models.User, res FlowResult) (string, error) {
	if res.Profile != nil {
		updated, err := r.users.UpdateUser(ctx, phone, *res.Profile)
		if err != nil {
			return "", fmt.Errorf("save profile: %w", err)
		}
		*user = *updated
	}
	if err := r.sessions.SetSession(ctx, phone, models.UpdateFromState(res.Next)); err != nil {
		return "", err
	}
	return res.Reply, nil
}

func (r *MessageRouter) dispatchCommand(ctx context.Context, log zerolog.Logger, phone string, ev models.InboundEvent, user *models.User, out *Outcome) (string, error) {
	switch ev.Kind {
	case models.KindText:
		input := ev.Text
		actionID, ok, err := r.menus.Resolve(ctx, phone, input)
		if err != nil {
			log.Warn().Err(err).Msg("Menu lookup failed, using raw text")
		} else if ok {
			log.Debug().Str("action", actionID).Msg("Resolved menu selection")
			input = actionID
			ev = ev.WithText(actionID)
		}

		h, ok := r.registry.Lookup(input)
		if !ok {
			return UnknownCommandMessage, nil
		}
		return r.invoke(ctx, phone, ev, user, h, out)

	case models.KindInteractive:
		if ev.Interactive == nil {
			return UnknownCommandMessage, nil
		}
		h, ok := r.registry.ByID(ev.Interactive.ID)
		if !ok {
			log.Warn().Str("action", ev.Interactive.ID).Msg("No handler for interactive reply")
			return UnknownCommandMessage, nil
		}
		return r.invoke(ctx, phone, ev, user, h, out)

	case models.KindMedia:
		if ev.Media == nil {
			return FileReceivedMessage, nil
		}
		fn, ok := r.registry.Media(ev.Media.Kind)
		if !ok {
			return FileReceivedMessage, nil
		}
		out.Handler = "media:" + string(ev.Media.Kind)
		reply, err := r.retry.Execute(ctx, func(ctx context.Context) (string, error) {
			return fn(ctx, ev, user)
		})
		if err != nil {
			return "", fmt.Errorf("media handler %s: %w", ev.Media.Kind, err)
		}
		if reply == "" {
			return FileReceivedMessage, nil
		}
		return reply, nil

	default:
		log.Warn().Str("type", ev.Text).Msg("Unsupported message type")
		return UnsupportedMessage, nil
	}
}

func (r *MessageRouter) invoke(ctx context.Context, phone string, ev models.InboundEvent, user *models.User, h content.Handler, out *Outcome) (string, error) {
	out.Handler = h.ID

	if h.StartsFlow() {
		res, err := r.flows.Start(ctx, h.Flow, ev, user)
		if err != nil {
			return "", err
		}
		out.Path = StageFlowDispatch
		return r.applyFlowResult(ctx, phone, user, res)
	}

	reply, err := r.retry.Execute(ctx, func(ctx context.Context) (string, error) {
		return h.Handle(ctx, ev, user)
	})
	if err != nil {
		return "", fmt.Errorf("handler %s: %w", h.ID, err)
	}
	if reply == "" {
		return UnknownCommandMessage, nil
	}
	return reply, nil
}

// touch records the interaction time. Failures are logged and ignored.
func (r *MessageRouter) touch(ctx context.Context, log zerolog.Logger, phone string) {
	now := r.now()
	if _, err := r.users.UpdateUser(ctx, phone, models.UserUpdate{LastInteraction: &now}); err != nil {
		log.Warn().Err(err).Msg("Failed to update last interaction")
	}
}

func (r *MessageRouter) logSilent(log zerolog.Logger, ev models.InboundEvent) {
	e := log.Debug().Str("stage", string(StageResponded))
	if ev.Status != nil {
		e = e.Str("status", ev.Status.Status).Str("provider_message_id", ev.Status.MessageID)
	}
	if ev.ContactName != "" {
		e = e.Str("contact_name", ev.ContactName)
	}
	e.Msg("Notification acknowledged")
}
