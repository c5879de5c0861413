package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// ScreenKind selects the layout of a screen
type ScreenKind int

const (
	// ScreenText is a plain prompt without numbered options
	ScreenText ScreenKind = iota
	// ScreenButtons is a short flat list of options under a framed body
	ScreenButtons
	// ScreenList groups options under section titles
	ScreenList
)

// Option is one numbered choice. Key overrides the running number ("0").
type Option struct {
	Action      models.Action
	Label       string
	Description string
	Key         string
}

// Section is a titled group of options in a list screen
type Section struct {
	Title   string
	Options []Option
}

// Screen is everything needed to render one reply and to interpret the
// next one. State is the state the session moves to once it is rendered.
type Screen struct {
	State    models.State
	Kind     ScreenKind
	Emoji    string
	Text     string
	Options  []Option
	Sections []Section
	ImageURL string
}

// Turn is what a state handler produces: short notices sent first, then
// exactly one screen.
type Turn struct {
	Notices []string
	Screen  Screen
}

func TextScreen(state models.State, text string) Screen {
	return Screen{State: state, Kind: ScreenText, Text: text}
}

func ButtonScreen(state models.State, emoji, text string, options ...Option) Screen {
	return Screen{State: state, Kind: ScreenButtons, Emoji: emoji, Text: text, Options: options}
}

func ListScreen(state models.State, emoji, text string, sections ...Section) Screen {
	return Screen{State: state, Kind: ScreenList, Emoji: emoji, Text: text, Sections: sections}
}

// WithImage sends imageURL with the text as caption before the options
func (s Screen) WithImage(imageURL string) Screen {
	s.ImageURL = imageURL
	return s
}

func opt(action models.Action, label string) Option {
	return Option{Action: action, Label: label}
}

func optDesc(action models.Action, label, description string) Option {
	return Option{Action: action, Label: label, Description: description}
}

func screenTurn(screen Screen, notices ...string) Turn {
	return Turn{Notices: notices, Screen: screen}
}

const (
	rule   = "━━━━━━━━━━━━━━━━"
	footer = "✅JibuNambaKuchagua"
)

var numberEmojis = []string{"0️⃣", "1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// NumberEmoji renders a menu key as a keycap glyph; keys beyond 10 are bold
func NumberEmoji(key string) string {
	n, err := strconv.Atoi(key)
	if err != nil {
		return "*" + key + ".*"
	}
	if n >= 0 && n < len(numberEmojis) {
		return numberEmojis[n]
	}
	return fmt.Sprintf("*%d.*", n)
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount as "15,000/="
func FormatMoney(amount models.Money) string {
	return moneyPrinter.Sprintf("%d/=", amount.Shillings())
}

// Renderer turns screens into outbound text and records the numbered
// mapping the next reply is read against.
type Renderer struct {
	metrics *Metrics
}

func NewRenderer(metrics *Metrics) *Renderer {
	return &Renderer{metrics: metrics}
}

// Format builds the outbound body and the key to action token mapping.
// It has no side effects; rendering the same screen twice gives the same
// mapping.
func Format(screen Screen) (string, map[string]string) {
	mapping := map[string]string{}
	if screen.Kind == ScreenText {
		return screen.Text, mapping
	}

	emoji := screen.Emoji
	if emoji == "" {
		emoji = "✨"
	}
	body := screen.Text
	if screen.ImageURL != "" {
		body = "Chagua:"
	}

	var b strings.Builder
	counter := 1
	line := func(o Option) {
		key := o.Key
		if key == "" {
			key = strconv.Itoa(counter)
			counter++
		}
		mapping[strings.ToLower(key)] = o.Action.Token()
		b.WriteString(NumberEmoji(key))
		b.WriteString(o.Label)
		if o.Description != "" {
			b.WriteString("(" + o.Description + ")")
		}
		b.WriteString("\n")
	}

	switch screen.Kind {
	case ScreenButtons:
		fmt.Fprintf(&b, "━━━━━━━━ %s ━━━━━━━━\n%s\n\n", emoji, body)
		for _, o := range screen.Options {
			line(o)
		}
	case ScreenList:
		fmt.Fprintf(&b, "━━━━━━━━%s━━━━━━━━\n%s\n", emoji, body)
		for _, section := range screen.Sections {
			if section.Title != "" {
				b.WriteString(section.Title + "\n")
			}
			for _, o := range section.Options {
				line(o)
			}
		}
	}

	b.WriteString(rule + "\n")
	b.WriteString(footer)
	return b.String(), mapping
}

// Render sends the screen and stamps the session with its state and
// mapping. The session is updated even when the transport fails, so the
// next reply is read against what the user was meant to see.
func (r *Renderer) Render(ctx context.Context, out Sender, session *models.Session, screen Screen) error {
	text, mapping := Format(screen)
	session.State = screen.State
	session.MenuOptions = mapping

	if screen.ImageURL != "" {
		if err := out.Send(ctx, session.ConversationID, screen.Text, screen.ImageURL); err != nil {
			log.Printf("⚠️  Image send failed for %s, falling back to text: %v", session.ConversationID, err)
			r.metrics.RenderFailure()
			if err := out.Send(ctx, session.ConversationID, screen.Text, ""); err != nil {
				log.Printf("❌ Caption send failed for %s: %v", session.ConversationID, err)
			}
		}
	}

	if err := out.Send(ctx, session.ConversationID, text, ""); err != nil {
		r.metrics.RenderFailure()
		return fmt.Errorf("failed to send %s screen: %w", screen.State, err)
	}
	return nil
}

// Notify sends a short text that does not change the session
func (r *Renderer) Notify(ctx context.Context, out Sender, session *models.Session, text string) error {
	if err := out.Send(ctx, session.ConversationID, text, ""); err != nil {
		r.metrics.RenderFailure()
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}
