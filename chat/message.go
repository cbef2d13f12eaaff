package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuthorAssistant = "assistant"
	AuthorUser      = "user"
)

// Message is one entry in a session transcript. Content is markdown.
type Message struct {
	ID        string
	Author    string
	Content   string
	Elements  []Element
	Actions   []Action
	CreatedAt time.Time
}

// Element is a file attached to a message, e.g. the uploaded image echoed
// back inline.
type Element struct {
	ID      string
	Name    string
	Display string // "inline" or "side"
	MIME    string
	Content []byte
}

// Action is a button offered to the user. Clicking it invokes the callback
// registered under Name.
type Action struct {
	Name  string
	Label string
	Value string
}

// NewMessage returns an assistant message with the given markdown content.
func NewMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Author:    AuthorAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewImageElement returns an inline image element holding data.
func NewImageElement(name, mime string, data []byte) Element {
	return Element{
		ID:      uuid.NewString(),
		Name:    name,
		Display: "inline",
		MIME:    mime,
		Content: data,
	}
}
