// Package bot turns Telegram updates into replies
package bot

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"path"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polybot/polybot/internal/image"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/session"
	"github.com/polybot/polybot/internal/storage"
	"github.com/polybot/polybot/internal/telegram"
	"github.com/polybot/polybot/internal/tracing"
	"github.com/twmb/murmur3"
	"go.opentelemetry.io/otel/attribute"
)

// Replies
const (
	NoPhotoReply        = "Please send a photo with a valid caption."
	NoCaptionReply      = "Please provide a caption for the image processing."
	DownloadFailedReply = "Failed to download the photo or the photo path is invalid. Please try again."
	FirstImageReply     = "First image received. Please send the second image with 'concat' caption."
	EchoPrefix          = "Your original message: "
	NoQuoteText         = "Please don't quote me"
)

var handledUpdates = expvar.NewMap("counter_labelmap_mode_bot_updates")

// Mode selects how the bot answers messages
type Mode int

const (
	// Echo repeats text messages back
	Echo Mode = iota
	// Quote replies to text messages by quoting them
	Quote
	// Image applies the filter named in a photo caption
	Image
)

func (m Mode) String() string {
	switch m {
	case Echo:
		return "echo"
	case Quote:
		return "quote"
	case Image:
		return "image"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "echo", "quote" or "image"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "echo":
		return Echo, nil
	case "quote":
		return Quote, nil
	case "image":
		return Image, nil
	default:
		return 0, fmt.Errorf("invalid bot mode %q", s)
	}
}

// Bot handles incoming updates
type Bot struct {
	Mode      Mode
	Messenger telegram.Messenger
	Processor image.Processor
	Storage   storage.Provider
	Sessions  *session.Store
	Log       *logger.Logger
	Tracer    *tracing.Tracer
}

// HandleUpdate answers a single update. Problems with the user's request are answered in the chat,
// the returned error means a reply could not be delivered.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}

	ctx, span := b.Tracer.Start(ctx, "bot.HandleUpdate")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", b.Mode.String()),
		attribute.Int64("chat-id", msg.Chat.ID),
	)

	handledUpdates.Add(b.Mode.String(), 1)

	b.Log.Infow("incoming message",
		"mode", b.Mode,
		"chat-id", msg.Chat.ID,
		"message-id", msg.MessageID,
		"photos", len(msg.Photo),
		"caption", msg.Caption,
	)

	var err error
	switch b.Mode {
	case Echo:
		err = b.echo(ctx, msg)
	case Quote:
		err = b.quote(ctx, msg)
	case Image:
		err = b.image(ctx, msg)
	default:
		err = fmt.Errorf("unknown bot mode %s", b.Mode)
	}

	if err != nil {
		tracing.Fail(span, err)
	}

	return err
}

func (b *Bot) echo(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Text == "" {
		return nil
	}

	return b.Messenger.SendText(ctx, msg.Chat.ID, EchoPrefix+msg.Text)
}

func (b *Bot) quote(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Text == "" || msg.Text == NoQuoteText {
		return nil
	}

	return b.Messenger.SendTextWithQuote(ctx, msg.Chat.ID, msg.Text, msg.MessageID)
}

func (b *Bot) image(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	if len(msg.Photo) == 0 {
		return b.Messenger.SendText(ctx, chatID, NoPhotoReply)
	}

	caption := strings.TrimSpace(msg.Caption)
	if caption == "" {
		return b.Messenger.SendText(ctx, chatID, NoCaptionReply)
	}

	task, err := image.ParseCaption(caption)
	if err != nil {
		b.resetSession(ctx, chatID)
		if errors.Is(err, image.ErrUnknownCaption) {
			return b.Messenger.SendText(ctx, chatID, err.Error())
		}
		return b.replyError(ctx, chatID, err)
	}

	key, err := b.storePhoto(ctx, chatID, msg.Photo[len(msg.Photo)-1])
	if err != nil {
		b.Log.Errorw("error storing photo",
			"chat-id", chatID,
			"error", err,
		)
		b.resetSession(ctx, chatID)
		return b.Messenger.SendText(ctx, chatID, DownloadFailedReply)
	}

	if task.Operation == image.Concat {
		current, err := b.Sessions.Get(ctx, chatID)
		if err != nil {
			return b.replyError(ctx, chatID, err)
		}

		if current.State != session.AwaitingSecondImage {
			if err := b.Sessions.AwaitSecondImage(ctx, chatID, key); err != nil {
				return b.replyError(ctx, chatID, err)
			}

			b.Log.Infow("stored first image for concat",
				"chat-id", chatID,
				"key", key,
			)
			return b.Messenger.SendText(ctx, chatID, FirstImageReply)
		}

		task.WithImages(current.FirstImage, key)
	} else {
		task.WithImages(key)
	}

	// Any processed photo ends a pending concatenation, whatever the outcome
	b.resetSession(ctx, chatID)

	result, err := b.Processor.ProcessImage(ctx, task)
	if err != nil {
		b.Log.Errorw("error processing image",
			"chat-id", chatID,
			"operation", task.Operation,
			"error", err,
		)
		return b.replyError(ctx, chatID, err)
	}

	return b.Messenger.SendPhoto(ctx, chatID, path.Base(result.Key), result.Data)
}

// storePhoto downloads the largest size of a photo into storage.
// Keys are derived from the file's unique id, so a photo sent twice is stored once.
func (b *Bot) storePhoto(ctx context.Context, chatID int64, photo tgbotapi.PhotoSize) (string, error) {
	ctx, span := b.Tracer.Start(ctx, "bot.storePhoto")
	defer span.End()

	data, err := b.Messenger.DownloadPhoto(ctx, photo.FileID)
	if err != nil {
		return "", err
	}

	key := PhotoKey(chatID, photo.FileUniqueID)
	if err := b.Storage.Put(ctx, key, data); err != nil {
		return "", err
	}

	return key, nil
}

// PhotoKey is the storage key of a photo sent to a chat
func PhotoKey(chatID int64, fileUniqueID string) string {
	return fmt.Sprintf("photos/%d/%016x.jpg", chatID, murmur3.StringSum64(fileUniqueID))
}

func (b *Bot) resetSession(ctx context.Context, chatID int64) {
	if err := b.Sessions.Reset(ctx, chatID); err != nil {
		b.Log.Warnw("error resetting session",
			"chat-id", chatID,
			"error", err,
		)
	}
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error) error {
	return b.Messenger.SendText(ctx, chatID, fmt.Sprintf("Error processing image: %s", err))
}
