package chat

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackClient adapts the Slack Web/Socket Mode APIs to the core's
// transport contracts.
type SlackClient struct {
	api       *slack.Client
	logger    *log.Logger
	botUserID string
}

func NewSlackClient(botToken, appToken string, logger *log.Logger) *SlackClient {
	api := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)
	return &SlackClient{api: api, logger: logger}
}

func (c *SlackClient) PostReply(ctx context.Context, channelID, threadID, text string) error {
	_, _, err := c.api.PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadID),
	)
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	return nil
}

func (c *SlackClient) UploadFile(ctx context.Context, channelID, threadID string, content []byte, filename, caption string) error {
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:         channelID,
		ThreadTimestamp: threadID,
		Reader:          bytes.NewReader(content),
		FileSize:        len(content),
		Filename:        filename,
		InitialComment:  caption,
	})
	if err != nil {
		return fmt.Errorf("upload file %s: %w", filename, err)
	}
	return nil
}

func (c *SlackClient) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	info, _, _, err := c.api.GetFileInfoContext(ctx, fileID, 0, 0)
	if err != nil {
		return nil, "", fmt.Errorf("file info %s: %w", fileID, err)
	}

	buffer := bytes.NewBuffer(nil)
	if err := c.api.GetFileContext(ctx, info.URLPrivateDownload, buffer); err != nil {
		return nil, "", fmt.Errorf("download file %s: %w", fileID, err)
	}
	return buffer.Bytes(), info.Name, nil
}

// Listen runs the Socket Mode loop, translating events-API payloads into
// core events until the context is canceled.
func (c *SlackClient) Listen(ctx context.Context, onMessage func(MessageEvent), onFile func(FileEvent)) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botUserID = auth.UserID

	sock := socketmode.New(c.api)
	go func() {
		for evt := range sock.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				payload, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					sock.Ack(*evt.Request)
				}
				c.route(payload, onMessage, onFile)
			case socketmode.EventTypeConnectionError:
				c.logf("slack socket connection error: %v", evt.Data)
			}
		}
	}()
	return sock.RunContext(ctx)
}

func (c *SlackClient) route(payload slackevents.EventsAPIEvent, onMessage func(MessageEvent), onFile func(FileEvent)) {
	if payload.Type != slackevents.CallbackEvent {
		return
	}

	eventID := ""
	if callback, ok := payload.Data.(*slackevents.EventsAPICallbackEvent); ok {
		eventID = callback.EventID
	}

	inner, ok := payload.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || inner.BotID != "" {
		return
	}

	threadID := inner.ThreadTimeStamp
	if threadID == "" {
		threadID = inner.TimeStamp
	}
	mention := "<@" + c.botUserID + ">"
	mentioned := strings.Contains(inner.Text, mention)

	// A file upload arrives as a message with the file_share subtype.
	// Its own ts is the ts later messages carry as ThreadTimeStamp, so
	// it is the only correct conversation key for the upload. The
	// workflow starts only when the upload message mentions the bot.
	if inner.SubType == "file_share" {
		if !mentioned {
			return
		}
		for _, file := range inner.Files {
			onFile(FileEvent{
				EventID:   eventID,
				ChannelID: inner.Channel,
				ThreadID:  threadID,
				SenderID:  inner.User,
				FileID:    file.ID,
				FileName:  file.Name,
			})
		}
		return
	}
	if inner.SubType != "" {
		return
	}

	onMessage(MessageEvent{
		EventID:   eventID,
		ChannelID: inner.Channel,
		ThreadID:  threadID,
		SenderID:  inner.User,
		Text:      strings.TrimSpace(strings.ReplaceAll(inner.Text, mention, "")),
		Mentioned: mentioned,
	})
}

func (c *SlackClient) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
