package transport

import "context"

// ChatID identifies a chat on the messaging platform.
type ChatID = int64

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Messenger is the narrow slice of the messaging API the bot needs.
type Messenger interface {
	// Updates returns the ids of every chat mentioned by pending updates.
	Updates(ctx context.Context) ([]ChatID, error)

	// ChatDescription returns the chat's description text ("" when absent).
	ChatDescription(ctx context.Context, id ChatID) (string, error)

	SendText(ctx context.Context, id ChatID, text string, opt *SendOptions) error
}

// Sender is the send-only subset of Messenger, used by log sinks.
type Sender interface {
	SendText(ctx context.Context, id ChatID, text string, opt *SendOptions) error
}
