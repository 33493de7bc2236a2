// Package assistant implements the conversation turn engine for the
// Assistant embedded gRPC API: it streams recorded audio up, drives the
// audio channel through the response state machine, carries conversation
// state across turns and hands device actions to registered handlers.
package assistant

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	embedded "google.golang.org/genproto/googleapis/assistant/embedded/v1alpha2"
	"google.golang.org/grpc"

	"github.com/d1nch8g/gassist/audio"
	"github.com/d1nch8g/gassist/device"
	"github.com/d1nch8g/gassist/display"
)

// DefaultDeadline bounds one full duplex Assist call.
const DefaultDeadline = 185 * time.Second

// ConversationState carries the opaque continuation token the service
// issues at the end of a turn. Supplying it on the next turn's config
// resumes the conversation context.
type ConversationState struct {
	mu    sync.Mutex
	token []byte
	isNew bool
}

// NewConversationState returns the state for a fresh conversation: no
// continuation token, first turn marked new.
func NewConversationState() *ConversationState {
	return &ConversationState{isNew: true}
}

// Snapshot returns the current continuation token and is-new flag.
func (s *ConversationState) Snapshot() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.isNew
}

// ClearNew marks the conversation as already started so later turns
// continue it.
func (s *ConversationState) ClearNew() {
	s.mu.Lock()
	s.isNew = false
	s.mu.Unlock()
}

// SetToken overwrites the continuation token with the one the service
// returned for this turn.
func (s *ConversationState) SetToken(token []byte) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Config holds the static per-session parameters sent in every turn's
// configuration request.
type Config struct {
	LanguageCode  string
	DeviceModelID string
	DeviceID      string
	// Display requests HTML screen-out payloads from the service.
	Display bool
	// Deadline bounds each Assist attempt. Zero means DefaultDeadline.
	Deadline time.Duration
}

// Assistant runs conversation turns against the embedded Assistant API.
// It owns the audio channel and conversation state exclusively; turns are
// serialized by the caller.
type Assistant struct {
	cfg     Config
	client  embedded.EmbeddedAssistantClient
	stream  audio.Channel
	state   *ConversationState
	actions *device.Registry
	screen  display.Display
	retry   RetryPolicy
	log     *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New creates an assistant session on an authorized gRPC channel. The
// first turn starts a new conversation; every later turn within the same
// session carries the prior turn's continuation state.
func New(cfg Config, conn *grpc.ClientConn, stream audio.Channel, actions *device.Registry, screen display.Display, log *zap.Logger) *Assistant {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if screen == nil {
		screen = display.Noop{}
	}
	return &Assistant{
		cfg:     cfg,
		client:  embedded.NewEmbeddedAssistantClient(conn),
		stream:  stream,
		state:   NewConversationState(),
		actions: actions,
		screen:  screen,
		retry:   NewRetryPolicy(),
		log:     log,
	}
}

// Assist sends one voice request to the Assistant and plays back the
// response, retrying transient transport failures. It returns true when
// the service expects a follow-on query without a new trigger.
func (a *Assistant) Assist(ctx context.Context) (bool, error) {
	return a.retry.Execute(func() (bool, error) {
		return a.assist(ctx)
	})
}

// assist runs a single turn attempt: one duplex Assist call with the
// request encoder feeding the send side while the responder drains the
// receive side.
func (a *Assistant) assist(ctx context.Context) (bool, error) {
	if err := a.stream.StartRecording(); err != nil {
		return false, fmt.Errorf("failed to start recording: %w", err)
	}
	a.log.Info("Recording audio request.")

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Deadline)
	defer cancel()

	rpc, err := a.client.Assist(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to open assist stream: %w", err)
	}

	enc := NewRequestEncoder(a.cfg, a.state, a.stream, a.log)
	sendDone := make(chan error, 1)
	go func() {
		sendDone <- a.sendRequests(rpc, enc.Encode(ctx))
	}()

	r := &responder{
		stream:  a.stream,
		state:   a.state,
		actions: a.actions,
		screen:  a.screen,
		display: a.cfg.Display,
		log:     a.log,
	}
	continueConversation, err := r.processTurn(ctx, rpc)
	if err != nil {
		// Aborted turn: terminate this attempt's encoder before a retry
		// can start a new one on the same channel.
		if stopErr := a.stream.StopRecording(); stopErr != nil {
			a.log.Warn("Failed to stop recording", zap.Error(stopErr))
		}
		<-sendDone
		return false, err
	}

	// The stream usually ends after an end-of-utterance already stopped
	// recording; make sure the encoder terminates either way.
	if err := a.stream.StopRecording(); err != nil {
		a.log.Warn("Failed to stop recording", zap.Error(err))
	}
	if err := <-sendDone; err != nil {
		return false, err
	}
	return continueConversation, nil
}

// sendRequests forwards encoded requests to the duplex call in production
// order and half-closes the stream when the sequence ends.
func (a *Assistant) sendRequests(rpc embedded.EmbeddedAssistant_AssistClient, requests <-chan *embedded.AssistRequest) error {
	for req := range requests {
		logAssistRequestWithoutAudio(a.log, req)
		if err := rpc.Send(req); err != nil {
			if err == io.EOF {
				// Stream already terminated by the server; the
				// receive side surfaces the real status.
				break
			}
			return fmt.Errorf("failed to send assist request: %w", err)
		}
	}
	return rpc.CloseSend()
}

// Close releases the audio channel. Safe to call regardless of how the
// last turn ended; only the first call has effect.
func (a *Assistant) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.stream.Close()
	})
	return a.closeErr
}
