// Package bot turns LINE events into replies: text messages are answered
// from the FAQ matcher, follow and join events get a welcome.
package bot

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/ctxutil"
	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/lineutil"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/metrics"
	"github.com/garyellow/faq-linebot-go/internal/ratelimit"
)

// MatcherSource yields the matcher to answer with, nil while the index is
// still being built. *warmup.ReadinessState implements it.
type MatcherSource interface {
	Matcher() *faq.Matcher
}

// Processor handles the core logic of answering LINE events.
type Processor struct {
	matchers      MatcherSource
	userLimiter   *ratelimit.KeyedLimiter
	noticeLimiter *ratelimit.KeyedLimiter
	logger        *logger.Logger
	metrics       *metrics.Metrics

	fallback         string
	maxMessageLength int
	groupAnswerAll   bool
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Matchers MatcherSource

	// UserLimiter bounds queries per user. NoticeLimiter bounds how often
	// a limited user is told so; without it the notice is never sent.
	UserLimiter   *ratelimit.KeyedLimiter
	NoticeLimiter *ratelimit.KeyedLimiter

	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	BotConfig *config.BotConfig

	// Fallback answers queries that arrive before a matcher exists.
	Fallback string
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = faq.DefaultFallback
	}
	maxLen := lineutil.MaxTextMessageLength
	groupAnswerAll := false
	if cfg.BotConfig != nil {
		if cfg.BotConfig.MaxMessageLength > 0 {
			maxLen = cfg.BotConfig.MaxMessageLength
		}
		groupAnswerAll = cfg.BotConfig.GroupAnswerAll
	}
	return &Processor{
		matchers:         cfg.Matchers,
		userLimiter:      cfg.UserLimiter,
		noticeLimiter:    cfg.NoticeLimiter,
		logger:           cfg.Logger.WithModule("bot"),
		metrics:          cfg.Metrics,
		fallback:         fallback,
		maxMessageLength: maxLen,
		groupAnswerAll:   groupAnswerAll,
	}
}

// ProcessMessage answers a message event. A nil reply means stay silent:
// non-text messages, and group messages that do not @mention the bot unless
// GroupAnswerAll is set.
func (p *Processor) ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	chat := ChatOf(event.Source)
	ctx = ctxutil.WithChatID(ctx, chat.ID)
	ctx = ctxutil.WithUserID(ctx, chat.UserID)

	msg, ok := event.Message.(webhook.TextMessageContent)
	if !ok {
		return nil, nil
	}

	text := msg.Text
	mentioned := !chat.Personal && IsBotMentioned(msg)
	switch {
	case mentioned:
		text = StripBotMentions(msg)
	case !chat.Personal && !p.groupAnswerAll:
		return nil, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if !mentioned {
			return nil, nil
		}
		return lineutil.TextMessages(emptyMentionText), nil
	}

	if allowed, notice := p.checkUserRateLimit(ctx, chat); !allowed {
		return notice, nil
	}

	if n := utf8.RuneCountInString(text); n > p.maxMessageLength {
		p.logger.WarnContext(ctx, "Text message too long", "length", n, "limit", p.maxMessageLength)
		return lineutil.TextMessages(tooLongText(p.maxMessageLength)), nil
	}

	return lineutil.TextMessages(p.Answer(ctx, text)), nil
}

// Answer matches text against the FAQ and returns the reply text. It logs
// the best score and records the outcome.
func (p *Processor) Answer(ctx context.Context, text string) string {
	start := time.Now()

	m := p.matchers.Matcher()
	if m == nil {
		p.logger.WarnContext(ctx, "FAQ index not ready, answering with fallback")
		p.recordMatch(metrics.OutcomeUnavailable, 0, start)
		return p.fallback
	}

	res := m.Match(text)
	outcome := outcomeOf(res)
	p.recordMatch(outcome, res.Score, start)

	p.logger.InfoContext(ctx, "Best match score",
		"score", res.Score,
		"index", res.Index,
		"outcome", outcome,
		"threshold", m.Threshold(),
	)
	return res.Answer
}

func outcomeOf(res faq.Result) string {
	switch {
	case res.Recovered:
		return metrics.OutcomePanic
	case res.Empty:
		return metrics.OutcomeEmpty
	case res.Matched:
		return metrics.OutcomeMatched
	default:
		return metrics.OutcomeFallback
	}
}

func (p *Processor) recordMatch(outcome string, score float64, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordMatch(outcome, score, time.Since(start).Seconds())
	}
}

// checkUserRateLimit applies the per-user limit. A limited user gets a
// notice at most once per notice window, then silence.
func (p *Processor) checkUserRateLimit(ctx context.Context, chat Chat) (bool, []messaging_api.MessageInterface) {
	key := chat.LimitKey()
	if p.userLimiter == nil || p.userLimiter.Allow(key) {
		return true, nil
	}

	p.logger.WarnContext(ctx, "User rate limit exceeded", "limit_key", lineutil.MaskID(key))
	if p.noticeLimiter != nil && p.noticeLimiter.Allow(key) {
		return false, lineutil.TextMessages(rateLimitText)
	}
	return false, nil
}

// ProcessFollow welcomes a user who added the bot.
func (p *Processor) ProcessFollow(event webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	p.logger.WithField("user_id", lineutil.MaskID(ChatOf(event.Source).UserID)).Info("New user followed the bot")
	return lineutil.TextMessages(followText), nil
}

// ProcessJoin greets a group or room the bot was added to.
func (p *Processor) ProcessJoin(event webhook.JoinEvent) ([]messaging_api.MessageInterface, error) {
	p.logger.WithField("chat_id", lineutil.MaskID(ChatOf(event.Source).ID)).Info("Bot joined a group chat")
	return lineutil.TextMessages(joinText), nil
}
