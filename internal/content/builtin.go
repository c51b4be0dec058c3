package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

// Action ids of the built-in handlers.
const (
	ActionHelp          = "help"
	ActionMenu          = "menu"
	ActionHoroscope     = "daily_horoscope"
	ActionSunSign       = "sun_sign"
	ActionNumerology    = "numerology"
	ActionCompatibility = "compatibility"
	ActionUpdateProfile = "update_profile"
	ActionProfile       = "profile"
)

// MenuRenderer renders a numbered menu and remembers its mapping for phone.
type MenuRenderer interface {
	Render(ctx context.Context, menu models.MenuSpec, phone string) (string, error)
}

// MainMenu is the top-level option list.
func MainMenu() models.MenuSpec {
	return models.MenuSpec{
		Title: "✨ Main Menu",
		Body:  "What would you like to explore today?",
		Sections: []models.MenuSection{
			{
				Title: "Readings",
				Rows: []models.MenuRow{
					{ID: ActionHoroscope, Title: "Daily Horoscope", Description: "Today's guidance for your sign"},
					{ID: ActionSunSign, Title: "Sun Sign", Description: "Your zodiac sign and element"},
					{ID: ActionNumerology, Title: "Numerology", Description: "Your life path number"},
				},
			},
			{
				Title: "Relationships",
				Rows: []models.MenuRow{
					{ID: ActionCompatibility, Title: "Compatibility", Description: "Check a match with someone"},
				},
			},
			{
				Title: "Account",
				Rows: []models.MenuRow{
					{ID: ActionProfile, Title: "My Profile"},
					{ID: ActionUpdateProfile, Title: "Update Profile"},
				},
			},
		},
		Footer: "Type *menu* any time to see this again.",
	}
}

// Builtins bundles what the built-in handlers depend on.
type Builtins struct {
	Menu MenuRenderer
	Now  func() time.Time
}

// NewDefaultRegistry returns the production dispatch table. Order matters:
// "update profile" must be tried before "profile".
func NewDefaultRegistry(menu MenuRenderer) *Registry {
	b := &Builtins{Menu: menu, Now: time.Now}
	return b.Registry()
}

// Registry builds the dispatch table bound to b.
func (b *Builtins) Registry() *Registry {
	r := NewRegistry().MustRegister(
		Handler{ID: ActionHelp, Keywords: []string{"help", "hi", "hello", "hey", "start", "namaste"}, Handle: b.help},
		Handler{ID: ActionMenu, Keywords: []string{"menu", "options"}, Handle: b.menu},
		Handler{ID: ActionHoroscope, Keywords: []string{"horoscope", "today", "daily"}, Handle: b.horoscope},
		Handler{ID: ActionSunSign, Keywords: []string{"sun sign", "zodiac", "my sign"}, Handle: b.sunSign},
		Handler{ID: ActionNumerology, Keywords: []string{"numerology", "life path"}, Handle: b.numerology},
		Handler{ID: ActionCompatibility, Keywords: []string{"compatibility", "compatible", "match", "love"}, Flow: models.FlowCompatibility},
		Handler{ID: ActionUpdateProfile, Keywords: []string{"update profile", "edit profile", "change profile"}, Flow: models.FlowOnboarding},
		Handler{ID: ActionProfile, Keywords: []string{"profile", "my details"}, Handle: b.profile},
	)
	r.RegisterMedia(models.MediaImage, b.palm)
	return r
}

func (b *Builtins) help(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	return fmt.Sprintf(`🙏 Namaste %s!

Here is what I can do:
🔮 *horoscope* - your daily horoscope
☀️ *sun sign* - your zodiac sign
🔢 *numerology* - your life path number
💞 *compatibility* - check a match
👤 *profile* - your saved birth details
📋 *menu* - all options

You can also send a photo of your palm for a quick reading.`, user.DisplayName()), nil
}

func (b *Builtins) menu(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	return b.Menu.Render(ctx, MainMenu(), user.PhoneNumber)
}

func (b *Builtins) horoscope(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	if user.BirthDate == nil {
		return missingBirthDate, nil
	}
	return DailyHoroscope(SunSign(*user.BirthDate), b.Now()), nil
}

func (b *Builtins) sunSign(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	if user.BirthDate == nil {
		return missingBirthDate, nil
	}
	sign := SunSign(*user.BirthDate)
	return fmt.Sprintf("%s Your sun sign is *%s*.\nElement: %s", sign.Symbol, sign.Name, sign.Element), nil
}

func (b *Builtins) numerology(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	if user.BirthDate == nil {
		return missingBirthDate, nil
	}
	n := LifePathNumber(*user.BirthDate)
	return fmt.Sprintf("🔢 Your life path number is *%d*.\n\n%s", n, LifePathMeaning(n)), nil
}

func (b *Builtins) profile(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	var sb strings.Builder
	sb.WriteString("👤 *Your profile*\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", orDash(user.Name))
	if user.BirthDate != nil {
		fmt.Fprintf(&sb, "Birth date: %s\n", user.BirthDate.Format("02 Jan 2006"))
	} else {
		sb.WriteString("Birth date: -\n")
	}
	fmt.Fprintf(&sb, "Birth time: %s\n", orDash(user.BirthTime))
	fmt.Fprintf(&sb, "Birth place: %s\n", orDash(user.BirthPlace))
	sb.WriteString("\nType *update profile* to change these details.")
	return sb.String(), nil
}

func (b *Builtins) palm(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error) {
	caption := ""
	if ev.Media != nil {
		caption = strings.ToLower(ev.Media.Caption)
	}
	if !strings.Contains(caption, "palm") && !strings.Contains(caption, "hand") {
		return "", nil
	}
	return `🖐️ Thanks for your palm photo!

Your heart line suggests warmth and loyalty, and a clear head line points to steady decisions.
For a detailed reading, make sure the whole palm is visible in good light.`, nil
}

const missingBirthDate = "I need your birth date for that. Type *update profile* to add it."

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
