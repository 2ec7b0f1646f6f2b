// Package chat holds the narrow contracts the bot core shares with the
// chat-platform transport, plus the Slack adapter implementing them.
package chat

import "context"

// MessageEvent is one inbound human message in a thread.
type MessageEvent struct {
	EventID   string
	ChannelID string
	ThreadID  string
	SenderID  string
	Text      string
	Mentioned bool
}

// FileEvent is one inbound file upload.
type FileEvent struct {
	EventID   string
	ChannelID string
	ThreadID  string
	SenderID  string
	FileID    string
	FileName  string
}

// Poster sends a text reply into a thread.
type Poster interface {
	PostReply(ctx context.Context, channelID, threadID, text string) error
}

// Uploader attaches a generated artifact to a thread.
type Uploader interface {
	UploadFile(ctx context.Context, channelID, threadID string, content []byte, filename, caption string) error
}

// Downloader fetches the bytes and display name of an uploaded file.
type Downloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}
