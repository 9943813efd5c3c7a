package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teemow/meetbot/internal/google"
	"github.com/teemow/meetbot/internal/meet"
)

type reply struct {
	cmd  Command
	text string
}

// fakeTransport feeds queued commands and records replies.
type fakeTransport struct {
	commands chan Command
	sendErr  error

	mu      sync.Mutex
	replies []reply
}

func newFakeTransport(cmds ...Command) *fakeTransport {
	ch := make(chan Command, len(cmds))
	for _, c := range cmds {
		ch <- c
	}
	close(ch)
	return &fakeTransport{commands: ch}
}

func (f *fakeTransport) Commands(context.Context) (<-chan Command, error) {
	return f.commands, nil
}

func (f *fakeTransport) Reply(_ context.Context, cmd Command, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{cmd: cmd, text: text})
	return f.sendErr
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.replies {
		out = append(out, r.text)
	}
	return out
}

// fakeCreator returns a fixed result and records requests.
type fakeCreator struct {
	space *meet.Space
	err   error
	block bool

	mu       sync.Mutex
	requests []meet.SpaceRequest
}

func (f *fakeCreator) CreateSpace(ctx context.Context, req meet.SpaceRequest) (*meet.Space, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.space, f.err
}

func newTestBot(t *testing.T, transport Transport, creator SpaceCreator) *Bot {
	t.Helper()
	b, err := New(Config{Transport: transport, Creator: creator})
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Creator: &fakeCreator{}})
	assert.ErrorContains(t, err, "transport is required")

	_, err = New(Config{Transport: newFakeTransport()})
	assert.ErrorContains(t, err, "space creator is required")

	_, err = New(Config{Transport: newFakeTransport(), Creator: &fakeCreator{}, CommandTimeout: -time.Second})
	assert.ErrorContains(t, err, "must not be negative")
}

func TestBot_Handle(t *testing.T) {
	tests := []struct {
		name           string
		command        string
		space          *meet.Space
		err            error
		wantHandled    bool
		wantRestricted bool
		wantReply      string
	}{
		{
			name:        "open space",
			command:     CommandMeet,
			space:       &meet.Space{MeetingURI: "https://meet.example/abc"},
			wantHandled: true,
			wantReply:   "Space created: https://meet.example/abc",
		},
		{
			name:           "closed space",
			command:        CommandMeetClosed,
			space:          &meet.Space{MeetingURI: "https://meet.example/xyz"},
			wantHandled:    true,
			wantRestricted: true,
			wantReply:      "Space created: https://meet.example/xyz",
		},
		{
			name:           "closed space error",
			command:        CommandMeetClosed,
			err:            errors.New("timeout"),
			wantHandled:    true,
			wantRestricted: true,
			wantReply:      "An error occurred: timeout",
		},
		{
			name:        "authorization error",
			command:     CommandMeet,
			err:         fmt.Errorf("%w: user closed the browser", google.ErrAuthorization),
			wantHandled: true,
			wantReply:   "An error occurred: authorization failed: user closed the browser",
		},
		{
			name:    "api error shows server message",
			command: CommandMeet,
			err: fmt.Errorf("failed to create space: %w", &googleapi.Error{
				Code:    403,
				Message: "Permission denied on resource",
			}),
			wantHandled: true,
			wantReply:   "An error occurred: Permission denied on resource",
		},
		{
			name:    "unknown command",
			command: "start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			creator := &fakeCreator{space: tt.space, err: tt.err}
			b := newTestBot(t, transport, creator)

			handled := b.Handle(context.Background(), Command{Name: tt.command, ChatID: 42, MessageID: 7})
			assert.Equal(t, tt.wantHandled, handled)

			if !tt.wantHandled {
				assert.Empty(t, transport.texts())
				assert.Empty(t, creator.requests)
				return
			}

			assert.Equal(t, []string{tt.wantReply}, transport.texts())
			assert.Equal(t, []meet.SpaceRequest{{Restricted: tt.wantRestricted}}, creator.requests)
			assert.Equal(t, int64(42), transport.replies[0].cmd.ChatID)
			assert.Equal(t, 7, transport.replies[0].cmd.MessageID)
		})
	}
}

func TestBot_Handle_ReplyFailureIsNotFatal(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErr = errors.New("chat not found")
	b := newTestBot(t, transport, &fakeCreator{space: &meet.Space{MeetingURI: "u"}})

	assert.True(t, b.Handle(context.Background(), Command{Name: CommandMeet}))
	assert.Len(t, transport.texts(), 1)
}

func TestBot_Handle_CommandTimeout(t *testing.T) {
	transport := newFakeTransport()
	b, err := New(Config{
		Transport:      transport,
		Creator:        &fakeCreator{block: true},
		CommandTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	b.Handle(context.Background(), Command{Name: CommandMeet})
	assert.Equal(t, []string{"An error occurred: " + context.DeadlineExceeded.Error()}, transport.texts())
}

func TestBot_Run(t *testing.T) {
	transport := newFakeTransport(
		Command{Name: CommandMeet, ChatID: 1},
		Command{Name: "help", ChatID: 1},
		Command{Name: CommandMeetClosed, ChatID: 2},
	)
	creator := &fakeCreator{space: &meet.Space{MeetingURI: "https://meet.example/abc"}}
	b := newTestBot(t, transport, creator)

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, []string{
		"Space created: https://meet.example/abc",
		"Space created: https://meet.example/abc",
	}, transport.texts())
	assert.Equal(t, []meet.SpaceRequest{{Restricted: false}, {Restricted: true}}, creator.requests)
}

func TestBot_Run_StopsOnCancel(t *testing.T) {
	transport := &fakeTransport{commands: make(chan Command)}
	b := newTestBot(t, transport, &fakeCreator{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "Space created: https://meet.google.com/a-b-c",
		FormatResult(&meet.Space{MeetingURI: "https://meet.google.com/a-b-c"}, nil))
	assert.Equal(t, "An error occurred: boom", FormatResult(nil, errors.New("boom")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "plain", ErrorMessage(errors.New("plain")))

	withMessage := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 429, Message: "Quota exceeded"})
	assert.Equal(t, "Quota exceeded", ErrorMessage(withMessage))

	noMessage := &googleapi.Error{Code: 500}
	assert.Equal(t, noMessage.Error(), ErrorMessage(noMessage))

	transport := &url.Error{Op: "Post", URL: "https://meet.googleapis.com/v2/spaces", Err: io.EOF}
	assert.Equal(t, "EOF", ErrorMessage(transport))
	assert.Equal(t, "context deadline exceeded",
		ErrorMessage(&url.Error{Op: "Post", URL: "https://meet.googleapis.com/v2/spaces", Err: context.DeadlineExceeded}))
}
