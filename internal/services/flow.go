package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/content"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// ErrNoFlow is returned when the engine is asked to run without an active
// flow for a user that does not need onboarding.
var ErrNoFlow = errors.New("no active flow")

// FlowResult is what a flow step hands back to the router.
type FlowResult struct {
	Reply string
	// Next is persisted as the new session state. A zero state ends the flow.
	Next models.FlowState
	// Profile, when set, is written to the user before the session.
	Profile *models.UserUpdate
	// Reroute asks the router to clear the flow and dispatch the event as a
	// command.
	Reroute bool
}

// Flow is one multi-step conversation.
type Flow interface {
	Name() string
	Step(ctx context.Context, ev models.InboundEvent, user *models.User, state models.FlowState) (FlowResult, error)
}

// FlowEngine picks the flow for a session and runs one step of it.
type FlowEngine struct {
	flows map[string]Flow
}

// NewFlowEngine registers flows by name.
func NewFlowEngine(flows ...Flow) *FlowEngine {
	e := &FlowEngine{flows: make(map[string]Flow, len(flows))}
	for _, f := range flows {
		e.flows[f.Name()] = f
	}
	return e
}

// NewDefaultFlowEngine returns the engine with onboarding and compatibility.
func NewDefaultFlowEngine(now func() time.Time) *FlowEngine {
	return NewFlowEngine(&OnboardingFlow{now: now}, &CompatibilityFlow{now: now})
}

// Has reports whether a flow is registered.
func (e *FlowEngine) Has(name string) bool {
	_, ok := e.flows[name]
	return ok
}

// Run advances the session's flow by one step. Users with an incomplete
// profile and no flow are placed at the start of onboarding.
func (e *FlowEngine) Run(ctx context.Context, ev models.InboundEvent, user *models.User, session *models.Session) (FlowResult, error) {
	state := session.State()
	if !state.Active() {
		if user.ProfileComplete {
			return FlowResult{}, ErrNoFlow
		}
		state = models.FlowState{Name: models.FlowOnboarding}
	}

	flow, ok := e.flows[state.Name]
	if !ok {
		logger.Warn().Str("phone", user.PhoneNumber).Str("flow", state.Name).Msg("Unknown flow in session, clearing")
		if !user.ProfileComplete {
			return e.Start(ctx, models.FlowOnboarding, ev, user)
		}
		return FlowResult{Reroute: true}, nil
	}

	if isCancel(ev) {
		if state.Name == models.FlowOnboarding && !user.ProfileComplete {
			res, err := flow.Step(ctx, ev.WithText(""), user, state)
			if err != nil {
				return res, err
			}
			res.Reply = "Let's finish your profile first so your readings are accurate.\n\n" + res.Reply
			return res, nil
		}
		return FlowResult{Reply: cancelledMessage}, nil
	}

	return flow.Step(ctx, ev, user, state)
}

// Start runs the first step of a flow.
func (e *FlowEngine) Start(ctx context.Context, name string, ev models.InboundEvent, user *models.User) (FlowResult, error) {
	flow, ok := e.flows[name]
	if !ok {
		return FlowResult{}, fmt.Errorf("flow %q is not registered", name)
	}
	return flow.Step(ctx, ev, user, models.FlowState{Name: name})
}

const cancelledMessage = "👍 Cancelled. Type *menu* to see what else I can do."

func isCancel(ev models.InboundEvent) bool {
	if ev.Kind != models.KindText && ev.Kind != models.KindInteractive {
		return false
	}
	switch utils.NormalizeLabel(ev.Input()) {
	case "cancel", "stop", "exit":
		return true
	}
	return false
}

// OnboardingFlow collects name and birth details.
//
//	0: greet, ask name
//	1: name -> ask birth date
//	2: birth date -> ask birth time
//	3: birth time or "skip" -> ask birth place
//	4: birth place -> profile complete
type OnboardingFlow struct {
	now func() time.Time
}

func (f *OnboardingFlow) Name() string { return models.FlowOnboarding }

func (f *OnboardingFlow) Step(ctx context.Context, ev models.InboundEvent, user *models.User, state models.FlowState) (FlowResult, error) {
	data := state.Data.Onboarding()
	input := strings.TrimSpace(ev.Input())

	stay := func(reply string) (FlowResult, error) {
		return FlowResult{Reply: reply, Next: state}, nil
	}
	advance := func(reply string) (FlowResult, error) {
		return FlowResult{Reply: reply, Next: models.FlowState{
			Name: state.Name,
			Step: state.Step + 1,
			Data: models.FlowData{Payload: data},
		}}, nil
	}

	switch state.Step {
	case 0:
		greeting := "🌟 Welcome to AstroBot! 🌟\n\nI'll need a few details to prepare your readings."
		if user.ProfileComplete {
			greeting = "✏️ Let's update your birth details."
		}
		return advance(greeting + "\n\nWhat's your name?")

	case 1:
		if n := utf8.RuneCountInString(input); n < 2 || n > 60 {
			return stay("Please tell me your name (2 to 60 characters).")
		}
		data.Name = input
		return advance(fmt.Sprintf(`Nice to meet you, %s! 👋

What's your date of birth?

Example: 15/08/1990`, input))

	case 2:
		birth, err := parseBirthDate(input, f.now())
		if err != nil {
			return stay("I couldn't read that date. Please use DD/MM/YYYY, for example 15/08/1990.")
		}
		data.BirthDate = birth.Format(isoDate)
		return advance(`🕐 What time were you born?

Use 24-hour HH:MM, for example 14:30.
Reply *skip* if you don't know.`)

	case 3:
		if utils.NormalizeLabel(input) == "skip" {
			data.BirthTime = ""
		} else {
			t, err := parseBirthTime(input)
			if err != nil {
				return stay("Please send the time as HH:MM (for example 06:45), or reply *skip*.")
			}
			data.BirthTime = t
		}
		return advance("📍 Where were you born? (city and country)")

	case 4:
		if utf8.RuneCountInString(input) < 2 {
			return stay("Please send your place of birth, for example Pune, India.")
		}
		data.BirthPlace = input

		birth, err := time.Parse(isoDate, data.BirthDate)
		if err != nil {
			// Payload lost its date; collect it again.
			return FlowResult{
				Reply: "Something went wrong with your birth date. What's your date of birth? (DD/MM/YYYY)",
				Next:  models.FlowState{Name: state.Name, Step: 2, Data: models.FlowData{Payload: data}},
			}, nil
		}

		complete := true
		name, birthTime, place := data.Name, data.BirthTime, data.BirthPlace
		sign := content.SunSign(birth)
		return FlowResult{
			Reply: fmt.Sprintf(`✅ Profile saved, %s!

%s Your sun sign is *%s*.

Type *menu* to explore your readings.`, name, sign.Symbol, sign.Name),
			Profile: &models.UserUpdate{
				Name:            &name,
				BirthDate:       &birth,
				BirthTime:       &birthTime,
				BirthPlace:      &place,
				ProfileComplete: &complete,
			},
		}, nil

	default:
		// Cursor out of range: start over.
		return f.Step(ctx, ev, user, models.FlowState{Name: state.Name})
	}
}

// CompatibilityFlow compares the user's sun sign with a partner's.
//
//	0: ask partner name
//	1: partner name -> ask partner birth date
//	2: partner birth date -> result
type CompatibilityFlow struct {
	now func() time.Time
}

func (f *CompatibilityFlow) Name() string { return models.FlowCompatibility }

func (f *CompatibilityFlow) Step(ctx context.Context, ev models.InboundEvent, user *models.User, state models.FlowState) (FlowResult, error) {
	data := state.Data.Compatibility()
	input := strings.TrimSpace(ev.Input())

	switch state.Step {
	case 0:
		return FlowResult{
			Reply: "💞 Let's check your compatibility!\n\nWhat's your partner's name? (reply *cancel* to stop)",
			Next:  models.FlowState{Name: state.Name, Step: 1, Data: models.FlowData{Payload: data}},
		}, nil

	case 1:
		if n := utf8.RuneCountInString(input); n < 2 || n > 60 {
			return FlowResult{Reply: "Please send your partner's name.", Next: state}, nil
		}
		data.PartnerName = input
		return FlowResult{
			Reply: fmt.Sprintf("What's %s's date of birth? (DD/MM/YYYY)", input),
			Next:  models.FlowState{Name: state.Name, Step: 2, Data: models.FlowData{Payload: data}},
		}, nil

	case 2:
		partnerBirth, err := parseBirthDate(input, f.now())
		if err != nil {
			return FlowResult{Reply: "I couldn't read that date. Please use DD/MM/YYYY.", Next: state}, nil
		}
		if user.BirthDate == nil {
			return FlowResult{Reply: "I need your own birth date first. Type *update profile* to add it."}, nil
		}

		mine := content.SunSign(*user.BirthDate)
		theirs := content.SunSign(partnerBirth)
		score := content.Compatibility(mine, theirs)
		return FlowResult{Reply: fmt.Sprintf(`💞 *Compatibility with %s*

You: %s %s (%s)
%s: %s %s (%s)

Score: *%d%%*
%s`, data.PartnerName,
			mine.Symbol, mine.Name, mine.Element,
			data.PartnerName, theirs.Symbol, theirs.Name, theirs.Element,
			score, compatibilityVerdict(score))}, nil

	default:
		return f.Step(ctx, ev, user, models.FlowState{Name: state.Name})
	}
}

func compatibilityVerdict(score int) string {
	switch {
	case score >= 80:
		return "A natural match. 🌟"
	case score >= 60:
		return "Good potential with a little effort."
	default:
		return "Opposites attract, but patience is key."
	}
}

const isoDate = "2006-01-02"

var birthDateLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006", isoDate}

func parseBirthDate(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	for _, layout := range birthDateLayouts {
		d, err := time.Parse(layout, input)
		if err != nil {
			continue
		}
		if d.Year() < 1900 || d.After(now) {
			return time.Time{}, fmt.Errorf("birth date %s out of range", input)
		}
		return d, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", input)
}

func parseBirthTime(input string) (string, error) {
	input = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))
	for _, layout := range []string{"15:04", "3:04PM", "15.04"} {
		if t, err := time.Parse(layout, input); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", input)
}
