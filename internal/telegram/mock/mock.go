package mock

import (
	"context"
	"fmt"
	"sync"
)

// Message is a reply recorded by the Messenger
type Message struct {
	ChatID          int64
	Text            string
	QuotedMessageID int
	PhotoName       string
	Photo           []byte
}

// Messenger records replies and serves photos from memory
type Messenger struct {
	Photos   map[string][]byte // Downloadable photos by file id
	FailSend bool

	mutex    sync.Mutex
	messages []Message
}

// SendText records a plain message
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.record(Message{ChatID: chatID, Text: text})
}

// SendTextWithQuote records a reply
func (m *Messenger) SendTextWithQuote(ctx context.Context, chatID int64, text string, quotedMessageID int) error {
	return m.record(Message{ChatID: chatID, Text: text, QuotedMessageID: quotedMessageID})
}

// SendPhoto records a photo
func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error {
	return m.record(Message{ChatID: chatID, PhotoName: name, Photo: data})
}

// DownloadPhoto returns a photo from Photos
func (m *Messenger) DownloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	data, ok := m.Photos[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}

	return data, nil
}

// Messages returns the recorded replies
func (m *Messenger) Messages() []Message {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]Message(nil), m.messages...)
}

func (m *Messenger) record(msg Message) error {
	if m.FailSend {
		return fmt.Errorf("send failed")
	}

	m.mutex.Lock()
	m.messages = append(m.messages, msg)
	m.mutex.Unlock()

	return nil
}
