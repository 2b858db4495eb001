package bot_test

import (
	"bytes"
	"context"
	goimage "image"
	"image/color"
	"image/png"
	"path"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polybot/polybot/internal/bot"
	"github.com/polybot/polybot/internal/cache/memory"
	"github.com/polybot/polybot/internal/image"
	"github.com/polybot/polybot/internal/image/filter"
	mockProcessor "github.com/polybot/polybot/internal/image/mock"
	"github.com/polybot/polybot/internal/imgbuf"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/session"
	"github.com/polybot/polybot/internal/storage/file"
	"github.com/polybot/polybot/internal/telegram/mock"
	"github.com/polybot/polybot/internal/tracing/test"
	"go.uber.org/zap"
)

const chatID = 42

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := goimage.NewRGBA(goimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 128, 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func setup(t *testing.T, mode bot.Mode) (*bot.Bot, *mock.Messenger) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logger.New(zap.FatalLevel)
	tracer := test.Tracer(log)

	storage, err := file.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	processor, err := filter.New(ctx, log, tracer, 2, image.NewCache(tracer, memory.New(), storage, image.DefaultPhotoTTL), storage)
	if err != nil {
		t.Fatal(err)
	}

	messenger := &mock.Messenger{
		Photos: map[string][]byte{
			"first":  encodePNG(t, 20, 10),
			"second": encodePNG(t, 20, 10),
		},
	}

	return &bot.Bot{
		Mode:      mode,
		Messenger: messenger,
		Processor: processor,
		Storage:   storage,
		Sessions:  session.NewStore(memory.New(), 0),
		Log:       log,
		Tracer:    tracer,
	}, messenger
}

func textMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
		},
	}
}

func photoMessage(fileID, caption string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 8,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Caption:   caption,
			Photo: []tgbotapi.PhotoSize{
				{FileID: "thumbnail", FileUniqueID: "thumbnail-unique"},
				{FileID: fileID, FileUniqueID: fileID + "-unique"},
			},
		},
	}
}

func handle(t *testing.T, b *bot.Bot, updates ...tgbotapi.Update) {
	t.Helper()

	for _, update := range updates {
		if err := b.HandleUpdate(context.Background(), update); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEcho(t *testing.T) {
	b, messenger := setup(t, bot.Echo)
	handle(t, b, textMessage("hello"), photoMessage("first", ""), tgbotapi.Update{})

	messages := messenger.Messages()
	if len(messages) != 1 || messages[0].Text != "Your original message: hello" || messages[0].ChatID != chatID {
		t.Errorf("wrong messages %+v", messages)
	}
}

func TestQuote(t *testing.T) {
	b, messenger := setup(t, bot.Quote)
	handle(t, b, textMessage("hello"), textMessage(bot.NoQuoteText))

	messages := messenger.Messages()
	if len(messages) != 1 || messages[0].Text != "hello" || messages[0].QuotedMessageID != 7 {
		t.Errorf("wrong messages %+v", messages)
	}
}

func TestImageReplies(t *testing.T) {
	tests := []struct {
		Name     string
		Update   tgbotapi.Update
		Expected string
	}{
		{"text without a photo", textMessage("blur"), bot.NoPhotoReply},
		{"photo without a caption", photoMessage("first", "   "), bot.NoCaptionReply},
		{"unknown caption", photoMessage("first", "Sharpen"), image.ErrUnknownCaption.Error()},
		{"invalid arguments", photoMessage("first", "Blur lots"), "Error processing image: Invalid caption arguments for Blur: "},
		{"missing photo", photoMessage("missing", "Blur"), bot.DownloadFailedReply},
		{"filter error", photoMessage("first", "Blur 50"), "Error processing image: invalid parameter: blur level 50"},
	}

	for _, test := range tests {
		b, messenger := setup(t, bot.Image)
		handle(t, b, test.Update)

		messages := messenger.Messages()
		if len(messages) != 1 || !strings.HasPrefix(messages[0].Text, test.Expected) {
			t.Errorf("%s: wrong messages %+v", test.Name, messages)
		}
	}
}

func TestImageFilter(t *testing.T) {
	tests := []struct {
		Caption        string
		ExpectedWidth  int
		ExpectedHeight int
	}{
		{"Blur 4", 17, 7},
		{"contour", 19, 10},
		{"Rotate", 10, 20},
		{"Segment", 20, 10},
		{"Salt and pepper", 20, 10},
		{"salt and pepper 0.1 0.3", 20, 10},
	}

	for _, test := range tests {
		b, messenger := setup(t, bot.Image)
		handle(t, b, photoMessage("first", test.Caption))

		messages := messenger.Messages()
		if len(messages) != 1 || messages[0].Photo == nil {
			t.Errorf("%s: wrong messages %+v", test.Caption, messages)
			continue
		}

		expectedName := path.Base(imgbuf.FilteredPath(bot.PhotoKey(chatID, "first-unique")))
		if messages[0].PhotoName != expectedName {
			t.Errorf("%s: wrong photo name %s", test.Caption, messages[0].PhotoName)
		}

		decoded, err := imgbuf.Decode(bytes.NewReader(messages[0].Photo), messages[0].PhotoName, imgbuf.RGB)
		if err != nil {
			t.Errorf("%s: %s", test.Caption, err)
			continue
		}

		if decoded.Width() != test.ExpectedWidth || decoded.Height() != test.ExpectedHeight {
			t.Errorf("%s: wrong dimensions %dx%d", test.Caption, decoded.Width(), decoded.Height())
		}
	}
}

func TestConcat(t *testing.T) {
	t.Run("joins two photos", func(t *testing.T) {
		b, messenger := setup(t, bot.Image)

		handle(t, b, photoMessage("first", "Concat"))
		current, err := b.Sessions.Get(context.Background(), chatID)
		if err != nil || current.State != session.AwaitingSecondImage {
			t.Fatalf("wrong session %+v %v", current, err)
		}

		handle(t, b, photoMessage("second", "concat vertical"))

		messages := messenger.Messages()
		if len(messages) != 2 || messages[0].Text != bot.FirstImageReply || messages[1].Photo == nil {
			t.Fatalf("wrong messages %+v", messages)
		}

		decoded, err := imgbuf.Decode(bytes.NewReader(messages[1].Photo), messages[1].PhotoName, imgbuf.Grayscale)
		if err != nil {
			t.Fatal(err)
		}

		if decoded.Width() != 20 || decoded.Height() != 20 {
			t.Errorf("wrong dimensions %dx%d", decoded.Width(), decoded.Height())
		}

		current, err = b.Sessions.Get(context.Background(), chatID)
		if err != nil || current.State != session.Idle {
			t.Errorf("session not reset %+v %v", current, err)
		}
	})

	t.Run("other captions cancel a pending concat", func(t *testing.T) {
		b, messenger := setup(t, bot.Image)

		handle(t, b, photoMessage("first", "Concat"), photoMessage("second", "Rotate"), photoMessage("first", "Concat"))

		messages := messenger.Messages()
		if len(messages) != 3 || messages[2].Text != bot.FirstImageReply {
			t.Errorf("wrong messages %+v", messages)
		}
	})

	t.Run("unknown caption cancels a pending concat", func(t *testing.T) {
		b, _ := setup(t, bot.Image)

		handle(t, b, photoMessage("first", "Concat"), photoMessage("second", "Sharpen"))

		current, err := b.Sessions.Get(context.Background(), chatID)
		if err != nil || current.State != session.Idle {
			t.Errorf("session not reset %+v %v", current, err)
		}
	})
}

func TestProcessingError(t *testing.T) {
	b, messenger := setup(t, bot.Image)
	b.Processor = &mockProcessor.Processor{}

	handle(t, b, photoMessage("first", "Rotate"))

	messages := messenger.Messages()
	if len(messages) != 1 || messages[0].Text != "Error processing image: processing error" {
		t.Errorf("wrong messages %+v", messages)
	}
}

func TestSendError(t *testing.T) {
	b, messenger := setup(t, bot.Echo)
	messenger.FailSend = true

	if err := b.HandleUpdate(context.Background(), textMessage("hello")); err == nil {
		t.Error("no error")
	}
}

func TestParseMode(t *testing.T) {
	for _, mode := range []bot.Mode{bot.Echo, bot.Quote, bot.Image} {
		parsed, err := bot.ParseMode(strings.ToUpper(mode.String()))
		if err != nil || parsed != mode {
			t.Errorf("%s: got %s %v", mode, parsed, err)
		}
	}

	if _, err := bot.ParseMode("shout"); err == nil {
		t.Error("no error")
	}
}
