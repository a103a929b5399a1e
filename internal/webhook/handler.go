// Package webhook receives LINE webhook callbacks, answers them through the
// bot processor and sends the replies.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/faq-linebot-go/internal/bot"
	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/ctxutil"
	"github.com/garyellow/faq-linebot-go/internal/lineutil"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/metrics"
	"github.com/garyellow/faq-linebot-go/internal/ratelimit"
	"github.com/garyellow/faq-linebot-go/internal/sentry"
)

// LINE allows 5-60 seconds in steps of 5.
const loadingSeconds int32 = 20

// Handler handles LINE webhook events
type Handler struct {
	channelSecret string
	client        *messaging_api.MessagingApiAPI
	metrics       *metrics.Metrics
	logger        *logger.Logger
	processor     *bot.Processor
	rateLimiter   *ratelimit.Limiter // reply API calls across all users
	wg            sync.WaitGroup

	webhookTimeout      time.Duration
	maxEventsPerWebhook int
	minReplyTokenLength int
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string
	// APIEndpoint overrides the Messaging API base URL. Empty uses LINE's.
	APIEndpoint string

	BotConfig *config.BotConfig
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Processor *bot.Processor
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if cfg.APIEndpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(cfg.APIEndpoint))
	}
	client, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}

	h := &Handler{
		channelSecret:       cfg.ChannelSecret,
		client:              client,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		processor:           cfg.Processor,
		webhookTimeout:      cfg.BotConfig.WebhookTimeout,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.BotConfig.MinReplyTokenLength,
	}
	if h.webhookTimeout <= 0 {
		h.webhookTimeout = config.WebhookProcessing
	}
	if h.maxEventsPerWebhook <= 0 {
		h.maxEventsPerWebhook = config.LINEMaxEventsPerWebhook
	}
	h.rateLimiter = ratelimit.New(cfg.BotConfig.GlobalRateLimitRPS, cfg.BotConfig.GlobalRateLimitRPS)

	return h, nil
}

// Handle is the Gin handler for the webhook endpoint. It answers 200 as soon
// as the signature checks out and replies to the events in the background.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)

	start := time.Now()
	h.metrics.RecordWebhook("batch", "received", 0)

	events := cb.Events
	if len(events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		events = events[:h.maxEventsPerWebhook]
	}
	// The request is done once Handle returns.
	events = append([]webhook.EventInterface(nil), events...)
	base := ctxutil.PreserveTracing(c.Request.Context())

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async event processing")
				sentry.CapturePanic(base, "webhook", r)
			}
		}()

		for _, event := range events {
			h.processEvent(base, event, start)
		}
	})
}

// processEvent answers a single event and sends the reply.
func (h *Handler) processEvent(parent context.Context, event webhook.EventInterface, webhookStart time.Time) {
	eventStart := time.Now()

	ctx, cancel := context.WithTimeout(parent, h.webhookTimeout)
	defer cancel()

	meta := eventMetaOf(event)
	log := h.logger
	if meta.id != "" {
		ctx = ctxutil.WithRequestID(ctx, meta.id)
		log = log.WithRequestID(meta.id)
	}
	if meta.redelivery != nil {
		log = log.WithField("is_redelivery", *meta.redelivery)
	}
	if meta.timestamp > 0 {
		log = log.WithField("event_timestamp_ms", meta.timestamp)
	}

	var (
		messages  []messaging_api.MessageInterface
		eventType string
		err       error
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		if h.shouldShowLoading(e) {
			if loadErr := h.showLoadingAnimation(bot.ChatOf(e.Source).ID); loadErr != nil {
				log.WithError(loadErr).Debug("Failed to show loading animation")
			}
		}
		messages, err = h.processor.ProcessMessage(ctx, e)
	case webhook.FollowEvent:
		eventType = "follow"
		messages, err = h.processor.ProcessFollow(e)
	case webhook.JoinEvent:
		eventType = "join"
		messages, err = h.processor.ProcessJoin(e)
	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("Unsupported event type")
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).WithField("event_type", eventType).Error("Failed to handle event")
	}
	h.metrics.RecordWebhook(eventType, status, time.Since(eventStart).Seconds())

	if err == nil && len(messages) > 0 {
		h.reply(ctx, log, meta.replyToken, messages)
	}

	log.WithField("event_type", eventType).
		WithField("event_duration_ms", time.Since(eventStart).Milliseconds()).
		WithField("batch_duration_ms", time.Since(webhookStart).Milliseconds()).
		Info("Event processed")
}

// reply sends messages with the event's reply token. Failures are logged and
// counted, never retried: a reply token is single-use.
func (h *Handler) reply(ctx context.Context, log *logger.Logger, replyToken string, messages []messaging_api.MessageInterface) {
	if replyToken == "" {
		log.Debug("Empty reply token, skipping reply")
		return
	}
	if len(replyToken) < h.minReplyTokenLength {
		log.WithField("token_length", len(replyToken)).Debug("Invalid reply token format")
		return
	}
	if len(messages) > lineutil.MaxMessagesPerReply {
		messages = messages[:lineutil.MaxMessagesPerReply]
	}

	if !h.rateLimiter.Allow() {
		log.Warn("Global rate limit exceeded; waiting")
		h.metrics.RecordRateLimiterDrop(ratelimit.MetricTypeGlobal)
		if err := h.rateLimiter.Wait(ctx); err != nil {
			log.WithError(err).Error("Gave up waiting for the reply rate limiter")
			h.metrics.RecordReplyFailure()
			return
		}
	}

	_, err := h.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err == nil {
		return
	}

	h.metrics.RecordReplyFailure()
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "Invalid reply token"):
		log.WithError(err).Warn("Reply token already used or expired")
	case strings.Contains(errMsg, "rate limit"):
		log.WithError(err).Error("LINE rate limit exceeded")
	default:
		log.WithError(err).WithField("reply_token", lineutil.MaskID(replyToken)).Error("Failed to send reply")
		sentry.CaptureExceptionWithContext(ctx, err)
	}
}

type eventMeta struct {
	id         string
	timestamp  int64
	redelivery *bool
	replyToken string
}

func eventMetaOf(event webhook.EventInterface) eventMeta {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return eventMeta{e.WebhookEventId, e.Timestamp, redeliveryOf(e.DeliveryContext), e.ReplyToken}
	case webhook.FollowEvent:
		return eventMeta{e.WebhookEventId, e.Timestamp, redeliveryOf(e.DeliveryContext), e.ReplyToken}
	case webhook.JoinEvent:
		return eventMeta{e.WebhookEventId, e.Timestamp, redeliveryOf(e.DeliveryContext), e.ReplyToken}
	default:
		return eventMeta{}
	}
}

func redeliveryOf(dc *webhook.DeliveryContext) *bool {
	if dc == nil {
		return nil
	}
	v := dc.IsRedelivery
	return &v
}

// shouldShowLoading reports whether a message gets an answer worth a loading
// indicator. LINE only shows it in one-on-one chats.
func (h *Handler) shouldShowLoading(e webhook.MessageEvent) bool {
	if _, ok := e.Source.(webhook.UserSource); !ok {
		return false
	}
	_, ok := e.Message.(webhook.TextMessageContent)
	return ok
}

func (h *Handler) showLoadingAnimation(chatID string) error {
	if chatID == "" {
		return nil
	}
	_, err := h.client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: loadingSeconds,
	})
	if err != nil {
		return fmt.Errorf("show loading animation: %w", err)
	}
	return nil
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
