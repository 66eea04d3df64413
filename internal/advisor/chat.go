package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/log"
)

// WelcomeID identifies the greeting, which is never sent to the model.
const WelcomeID = "welcome"

const welcomeText = "Hi! I'm PennyWise, your AI financial companion. How can I help you save more today? 💰✨"

// ErrEmptyMessage is returned when a blank chat message is sent.
var ErrEmptyMessage = errors.New("empty message")

// Message is one entry of the chat transcript.
type Message struct {
	ID      string    `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
	Failed  bool      `json:"failed,omitempty"`
}

// Tool exposes a slice of the owner's data to the model.
type Tool struct {
	Name        string
	Description string
	Run         func(core.Snapshot) string
}

// DefaultTools are the data views the assistant can consult.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "expense_summary",
			Description: "Total spent per category.",
			Run: func(s core.Snapshot) string {
				sums := map[string]decimal.Decimal{}
				for _, e := range core.ResolveNames(s.Expenses, s.Categories) {
					sums[e.CategoryName] = sums[e.CategoryName].Add(e.Amount)
				}
				ordered := make([]string, 0, len(sums))
				for _, name := range sortedKeys(sums) {
					ordered = append(ordered, fmt.Sprintf("%q:%s", name, sums[name].String()))
				}
				return "{" + strings.Join(ordered, ",") + "}"
			},
		},
		{
			Name:        "financial_goals",
			Description: "The savings goals the user has set.",
			Run:         func(s core.Snapshot) string { return compactJSON(s.Goals) },
		},
		{
			Name:        "user_settings",
			Description: "Currency and country preferences.",
			Run:         func(s core.Snapshot) string { return compactJSON(s.Settings) },
		},
	}
}

// Chat is one owner's conversation with the assistant.
type Chat struct {
	llm    LLM
	data   func() core.Snapshot
	tools  []Tool
	opts   Options
	logger *log.Logger

	// sendMu keeps turns in order.
	sendMu  sync.Mutex
	mu      sync.RWMutex
	history []Message
}

// NewChat starts a conversation. data supplies the owner's current snapshot
// each time a message is sent.
func NewChat(llm LLM, data func() core.Snapshot, opts Options) *Chat {
	opts = opts.withDefaults()
	c := &Chat{
		llm:    llm,
		data:   data,
		tools:  DefaultTools(),
		opts:   opts,
		logger: opts.Logger,
	}
	c.Reset()
	return c
}

// Messages returns the transcript, greeting first.
func (c *Chat) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Message(nil), c.history...)
}

// Reset clears the conversation back to the greeting.
func (c *Chat) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []Message{{ID: WelcomeID, Role: RoleAssistant, Content: welcomeText, At: c.opts.Now()}}
}

// Send appends the user's message and the assistant's reply. Model failures
// become an assistant message flagged Failed; only blank input is an error.
func (c *Chat) Send(ctx context.Context, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, core.Validation(log.OpChat, ErrEmptyMessage)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	turns := c.turns()
	turns = append(turns, Turn{Role: RoleUser, Content: content})
	c.append(Message{ID: uuid.NewString(), Role: RoleUser, Content: content, At: c.opts.Now()})

	reply := Message{ID: uuid.NewString(), Role: RoleAssistant, At: c.opts.Now()}
	text, err := c.ask(ctx, turns)
	if err != nil {
		c.logger.Failure(ctx, "chat reply failed", log.OpChat, log.ErrorTypeAdvisor, err)
		reply.Content = fmt.Sprintf("Oops! I'm having trouble connecting to my brain. Error: %v 🛠️🔌", err)
		reply.Failed = true
	} else {
		reply.Content = strings.TrimSpace(text)
	}
	reply.At = c.opts.Now()
	c.append(reply)
	return reply, nil
}

func (c *Chat) ask(ctx context.Context, turns []Turn) (string, error) {
	if c.llm == nil {
		return "", core.Advisor(log.OpChat, errors.New("no model configured"))
	}
	var snap core.Snapshot
	if c.data != nil {
		snap = c.data()
	}
	return generate(ctx, c.llm, c.opts.Timeout, Prompt{
		System: c.systemPrompt(snap),
		Turns:  turns,
	})
}

func (c *Chat) systemPrompt(snap core.Snapshot) string {
	var b strings.Builder
	b.WriteString("You are PennyWise, a friendly and intelligent AI financial advisor.\n")
	b.WriteString("Help the user manage their money, track expenses and reach financial goals.\n")
	b.WriteString("Answer from the data below whenever the user asks about their finances.\n")
	b.WriteString("Be encouraging, catchy, and use emojis!\n")
	fmt.Fprintf(&b, "Current user: %s\n", snap.Settings.OwnerID)
	for _, t := range c.tools {
		fmt.Fprintf(&b, "\n[%s] %s\n%s\n", t.Name, t.Description, t.Run(snap))
	}
	return b.String()
}

// turns converts the history, minus the greeting, to model turns.
func (c *Chat) turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, 0, len(c.history))
	for _, m := range c.history {
		if m.ID == WelcomeID || m.Failed {
			continue
		}
		out = append(out, Turn{Role: m.Role, Content: m.Content})
	}
	return out
}

func (c *Chat) append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, m)
}
