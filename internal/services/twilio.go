package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one outbound message to a conversation
type Sender interface {
	Send(ctx context.Context, to, text, imageURL string) error
}

// WhatsApp rejects bodies longer than this
const maxBodyLength = 1600

type TwilioService struct {
	client *twilio.RestClient
	from   string // Format: "whatsapp:+14155238886"
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(accountSid, authToken, from string) (*TwilioService, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}

	return &TwilioService{
		client: client,
		from:   from,
	}, nil
}

// Send sends a WhatsApp message via Twilio. Long bodies go out in several
// messages; the image, if any, rides on the first one.
func (t *TwilioService) Send(ctx context.Context, to, text, imageURL string) error {
	for i, chunk := range splitBody(text, maxBodyLength) {
		if err := ctx.Err(); err != nil {
			return err
		}

		params := &twilioApi.CreateMessageParams{}
		params.SetFrom(t.from)
		params.SetTo(whatsappAddress(to))
		params.SetBody(chunk)
		if i == 0 && imageURL != "" {
			params.SetMediaUrl([]string{imageURL})
		}

		resp, err := t.client.Api.CreateMessage(params)
		if err != nil {
			log.Printf("❌ Failed to send WhatsApp message: %v", err)
			return err
		}
		if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
			msg := ""
			if resp.ErrorMessage != nil {
				msg = *resp.ErrorMessage
			}
			return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
		}

		if resp.Sid != nil {
			log.Printf("✅ WhatsApp message sent! SID: %s", *resp.Sid)
		}
	}
	return nil
}

func whatsappAddress(to string) string {
	if strings.HasPrefix(to, "whatsapp:") {
		return to
	}
	return "whatsapp:" + to
}

// splitBody cuts text into chunks of at most limit bytes, preferring line breaks
func splitBody(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := runeBoundary(line, limit)
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if current.Len()+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// runeBoundary backs off limit so a multi-byte rune is never split
func runeBoundary(s string, limit int) int {
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ConsoleSender prints messages, for the console command and local runs
type ConsoleSender struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleSender(out io.Writer) *ConsoleSender {
	return &ConsoleSender{out: out}
}

func (c *ConsoleSender) Send(_ context.Context, _ string, text, imageURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if imageURL != "" {
		if _, err := fmt.Fprintf(c.out, "🖼️  %s\n", imageURL); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(c.out, "%s\n\n", text)
	return err
}

// OutboundMessage is a message captured by a RecordingSender
type OutboundMessage struct {
	To       string `json:"to"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// RecordingSender keeps every message instead of delivering it
type RecordingSender struct {
	mu       sync.Mutex
	messages []OutboundMessage
}

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

func (r *RecordingSender) Send(_ context.Context, to, text, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, OutboundMessage{To: to, Text: text, ImageURL: imageURL})
	return nil
}

// Messages returns a copy of what was sent so far
func (r *RecordingSender) Messages() []OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutboundMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message
func (r *RecordingSender) Last() (OutboundMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return OutboundMessage{}, false
	}
	return r.messages[len(r.messages)-1], true
}

func (r *RecordingSender) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
