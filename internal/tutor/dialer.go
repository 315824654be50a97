package tutor

import (
	"context"

	"quiztutor-backend/internal/realtime"
)

// RealtimeDialer opens handles with the websocket realtime client.
type RealtimeDialer struct {
	Client *realtime.Client
}

func (d RealtimeDialer) Dial(ctx context.Context, credential, instructions string) (SessionHandle, error) {
	session, err := d.Client.Connect(ctx, credential, instructions)
	if err != nil {
		return nil, err
	}
	return session, nil
}

var (
	_ SessionHandle = (*realtime.Session)(nil)
	_ TextSender    = (*realtime.Session)(nil)
	_ AudioAppender = (*realtime.Session)(nil)
)
