// Package telegram talks to the Telegram Bot API
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const requestTimeout = 60 * time.Second

// Messenger sends replies to chats and fetches the photos users send
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTextWithQuote(ctx context.Context, chatID int64, text string, quotedMessageID int) error
	SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// Client is a Messenger backed by the Bot API
type Client struct {
	bot          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	tracer       *tracing.Tracer
	log          *logger.Logger
}

// Config configures a Client
type Config struct {
	Token        string
	APIEndpoint  string // Format string taking the token and method, defaults to tgbotapi.APIEndpoint
	FileEndpoint string // Format string taking the token and file path, defaults to tgbotapi.FileEndpoint
}

// New creates a client and checks the token against the API
func New(cfg Config, log *logger.Logger, tracer *tracing.Tracer) (*Client, error) {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}

	httpClient := &http.Client{
		Timeout: requestTimeout,
		Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithTracerProvider(tracer),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return "telegram " + r.Method
			}),
		),
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("error connecting to telegram: %w", err)
	}

	log.Infow("telegram bot information",
		"id", bot.Self.ID,
		"username", bot.Self.UserName,
	)

	return &Client{
		bot:          bot,
		httpClient:   httpClient,
		fileEndpoint: cfg.FileEndpoint,
		tracer:       tracer,
		log:          log,
	}, nil
}

// SetWebhook removes any existing webhook and points the bot at url
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	_, span := c.tracer.Start(ctx, "telegram.SetWebhook")
	defer span.End()

	if err := c.RemoveWebhook(ctx); err != nil {
		return err
	}

	webhook, err := tgbotapi.NewWebhook(url)
	if err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("invalid webhook url: %w", err)
	}

	if _, err := c.bot.Request(webhook); err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("error setting webhook: %w", err)
	}

	return nil
}

// RemoveWebhook unregisters the webhook, pending updates are kept
func (c *Client) RemoveWebhook(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "telegram.RemoveWebhook")
	defer span.End()

	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("error removing webhook: %w", err)
	}

	return nil
}

// SendText sends a plain message
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, "telegram.SendText", chatID, tgbotapi.NewMessage(chatID, text))
}

// SendTextWithQuote sends a message as a reply to quotedMessageID
func (c *Client) SendTextWithQuote(ctx context.Context, chatID int64, text string, quotedMessageID int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = quotedMessageID

	return c.send(ctx, "telegram.SendTextWithQuote", chatID, msg)
}

// SendPhoto uploads an encoded photo, name decides the file name Telegram shows
func (c *Client) SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})

	return c.send(ctx, "telegram.SendPhoto", chatID, photo)
}

func (c *Client) send(ctx context.Context, spanName string, chatID int64, msg tgbotapi.Chattable) error {
	_, span := c.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.Int64("chat-id", chatID))

	if _, err := c.bot.Send(msg); err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("error sending message to chat %d: %w", chatID, err)
	}

	return nil
}

// DownloadPhoto resolves a file id and downloads its contents
func (c *Client) DownloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "telegram.DownloadPhoto")
	defer span.End()

	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("error getting file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.fileEndpoint, c.bot.Token, file.FilePath), nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("error downloading file %s: %w", fileID, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("error downloading file %s: unexpected status %d", fileID, res.StatusCode)
		tracing.Fail(span, err)
		return nil, err
	}

	return io.ReadAll(res.Body)
}
