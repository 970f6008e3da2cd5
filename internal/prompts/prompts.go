// package prompts produces short journaling prompts from a chat-completion model.
//
// A [Generator] always returns a prompt. When no model is configured, the model fails,
// or it replies with nothing usable, a prompt is drawn from a static fallback list.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/desertthunder/capsule/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 20 * time.Second
	maxPromptLen   = 280
)

const systemPrompt = `You write a single short journaling prompt. ` +
	`Reply with the prompt only: one or two sentences, no numbering, no quotes.`

// Fallback is the prompt list used when the model cannot answer.
var Fallback = []string{
	"What is one thing that surprised you today?",
	"Describe a moment this week when you felt most like yourself.",
	"What would you like to remember about today a year from now?",
	"Write a note to the person you will be when this entry unseals.",
	"Which small habit has been quietly shaping your days?",
	"What are you looking forward to, and why does it matter to you?",
	"Who made your day better recently? What did they do?",
	"What is something you have been avoiding thinking about?",
	"Describe the place you felt calmest this month.",
	"What did you learn from a mistake you made lately?",
}

// ErrEmptyReply is reported when the model answers with no usable text.
var ErrEmptyReply = errors.New("prompts: empty model reply")

// Source identifies where a prompt came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Prompt is a generated journaling prompt.
type Prompt struct {
	Text   string
	Source Source
	// Err is the model failure that caused a fallback, if any.
	Err error
}

// Options configures a [Generator].
type Options struct {
	Logger    *log.Logger
	RateLimit float64 // requests per second, 0 uses 1
	Timeout   time.Duration
	Fallback  []string
	// Pick chooses a fallback index in [0, n). Defaults to a random choice.
	Pick func(n int) int
}

// Generator requests prompts from a chat model.
type Generator struct {
	model    model.BaseChatModel
	limiter  *rate.Limiter
	logger   *log.Logger
	timeout  time.Duration
	fallback []string
	pick     func(n int) int
}

// New creates a generator over m. A nil m always uses the fallback list.
func New(m model.BaseChatModel, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if len(opts.Fallback) == 0 {
		opts.Fallback = Fallback
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}

	return &Generator{
		model:    m,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:   shared.WithLogger(opts.Logger, "component", "prompts"),
		timeout:  opts.Timeout,
		fallback: opts.Fallback,
		pick:     opts.Pick,
	}
}

// NewFromConfig builds a generator backed by an OpenAI-compatible endpoint.
//
// Without an API key the generator serves fallback prompts only.
func NewFromConfig(ctx context.Context, cfg shared.PromptsConfig, logger *log.Logger) (*Generator, error) {
	opts := Options{Logger: logger, RateLimit: cfg.RateLimit, Timeout: cfg.Timeout.Duration}
	if cfg.APIKey == "" {
		return New(nil, opts), nil
	}

	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   name,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return New(cm, opts), nil
}

// Configured reports whether a model backs the generator.
func (g *Generator) Configured() bool {
	return g.model != nil
}

// Generate returns a prompt, optionally steered by topic (for example a mood).
//
// It returns an error only when ctx ends while waiting on the rate limiter.
func (g *Generator) Generate(ctx context.Context, topic string) (Prompt, error) {
	if g.model == nil {
		return g.fallbackPrompt(nil), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return Prompt{}, fmt.Errorf("prompt rate limit: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.model.Generate(reqCtx, messagesFor(topic))
	if err != nil {
		g.logger.Warn("prompt model failed; using fallback", "error", err)
		return g.fallbackPrompt(err), nil
	}

	text := clean(msg.Content)
	if text == "" {
		g.logger.Warn("prompt model returned nothing; using fallback")
		return g.fallbackPrompt(ErrEmptyReply), nil
	}

	g.logger.Debug("prompt generated", "topic", topic, "length", len(text))
	return Prompt{Text: text, Source: SourceModel}, nil
}

func (g *Generator) fallbackPrompt(cause error) Prompt {
	i := g.pick(len(g.fallback))
	if i < 0 || i >= len(g.fallback) {
		i = 0
	}
	return Prompt{Text: g.fallback[i], Source: SourceFallback, Err: cause}
}

func messagesFor(topic string) []*schema.Message {
	user := "Give me a journaling prompt for today."
	if topic = strings.TrimSpace(topic); topic != "" {
		user = fmt.Sprintf("Give me a journaling prompt about: %s", topic)
	}
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	}
}

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

// clean keeps the first non-empty line, strips list markers and quotes, and truncates.
func clean(s string) string {
	var line string
	for l := range strings.SplitSeq(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	line = listMarker.ReplaceAllString(line, "")
	line = strings.Trim(line, "\"'“” ")

	if r := []rune(line); len(r) > maxPromptLen {
		line = strings.TrimSpace(string(r[:maxPromptLen-3])) + "..."
	}
	return line
}
