package assistant

import (
	"bytes"
	"context"
	"io"
	"testing"

	"go.uber.org/zap"
	embedded "google.golang.org/genproto/googleapis/assistant/embedded/v1alpha2"

	"github.com/d1nch8g/gassist/device"
	"github.com/d1nch8g/gassist/display"
)

// scriptedStream serves a fixed inbound response sequence.
type scriptedStream struct {
	responses []*embedded.AssistResponse
	next      int
}

func (s *scriptedStream) Recv() (*embedded.AssistResponse, error) {
	if s.next >= len(s.responses) {
		return nil, io.EOF
	}
	resp := s.responses[s.next]
	s.next++
	return resp, nil
}

func newTestResponder(channel *fakeChannel, state *ConversationState) *responder {
	return &responder{
		stream:  channel,
		state:   state,
		actions: device.NewRegistry("test-device", zap.NewNop()),
		screen:  display.Noop{},
		log:     zap.NewNop(),
	}
}

func runTurn(t *testing.T, channel *fakeChannel, state *ConversationState, responses ...*embedded.AssistResponse) bool {
	t.Helper()
	r := newTestResponder(channel, state)
	outcome, err := r.processTurn(context.Background(), &scriptedStream{responses: responses})
	if err != nil {
		t.Fatalf("processTurn failed: %v", err)
	}
	return outcome
}

func TestTurnStopsRecordingStartsPlaybackAndCloses(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	outcome := runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{EventType: embedded.AssistResponse_END_OF_UTTERANCE},
		&embedded.AssistResponse{AudioOut: &embedded.AudioOut{AudioData: []byte("AB")}},
		&embedded.AssistResponse{DialogStateOut: &embedded.DialogStateOut{
			MicrophoneMode: embedded.DialogStateOut_CLOSE_MICROPHONE,
		}},
	)

	if outcome {
		t.Error("CLOSE_MICROPHONE must end the conversation")
	}
	want := []string{"start-recording", "stop-recording", "start-playback", "stop-playback"}
	if len(channel.events) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, channel.events)
	}
	for i, event := range want {
		if channel.events[i] != event {
			t.Fatalf("Expected events %v, got %v", want, channel.events)
		}
	}
	if len(channel.written) != 1 || !bytes.Equal(channel.written[0], []byte("AB")) {
		t.Errorf("Expected audio 'AB' written once, got %q", channel.written)
	}
}

func TestEmptyAudioNeverStartsPlayback(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{AudioOut: &embedded.AudioOut{}},
		&embedded.AssistResponse{AudioOut: &embedded.AudioOut{AudioData: nil}},
	)

	for _, event := range channel.events {
		if event == "start-playback" {
			t.Error("Empty audio payloads must not start playback")
		}
	}
	if len(channel.written) != 0 {
		t.Errorf("Expected no audio written, got %d chunks", len(channel.written))
	}
}

func TestBargeInStopsRecordingBeforeAnyEndOfUtterance(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{AudioOut: &embedded.AudioOut{AudioData: []byte("early")}},
	)

	if channel.Recording() {
		t.Error("Barge-in audio must stop recording")
	}
	if len(channel.events) < 3 || channel.events[1] != "stop-recording" || channel.events[2] != "start-playback" {
		t.Errorf("Expected stop-recording then start-playback, got %v", channel.events)
	}
}

func TestRepeatedEndOfUtteranceIsIdempotent(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{EventType: embedded.AssistResponse_END_OF_UTTERANCE},
		&embedded.AssistResponse{EventType: embedded.AssistResponse_END_OF_UTTERANCE},
	)

	stops := 0
	for _, event := range channel.events {
		if event == "stop-recording" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("Expected one effective stop-recording transition, got %d", stops)
	}
}

func TestFollowOnIsStickyUntilCloseMicrophone(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	outcome := runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{DialogStateOut: &embedded.DialogStateOut{
			MicrophoneMode: embedded.DialogStateOut_DIALOG_FOLLOW_ON,
		}},
		&embedded.AssistResponse{},
	)
	if !outcome {
		t.Error("FOLLOW_ON with no later CLOSE_MICROPHONE must continue the conversation")
	}

	channel = newFakeChannel()
	channel.StartRecording()
	outcome = runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{DialogStateOut: &embedded.DialogStateOut{
			MicrophoneMode: embedded.DialogStateOut_DIALOG_FOLLOW_ON,
		}},
		&embedded.AssistResponse{DialogStateOut: &embedded.DialogStateOut{
			MicrophoneMode: embedded.DialogStateOut_CLOSE_MICROPHONE,
		}},
	)
	if outcome {
		t.Error("The last microphone mode must win within the turn")
	}
}

func TestDialogStateUpdatesTokenAndVolume(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()
	state := NewConversationState()

	runTurn(t, channel, state,
		&embedded.AssistResponse{DialogStateOut: &embedded.DialogStateOut{
			ConversationState: []byte("token-1"),
			VolumePercentage:  70,
		}},
	)

	token, _ := state.Snapshot()
	if !bytes.Equal(token, []byte("token-1")) {
		t.Errorf("Expected continuation token updated, got %q", token)
	}
	if channel.Volume() != 70 {
		t.Errorf("Expected volume 70, got %d", channel.Volume())
	}
}

func TestZeroVolumeMeansUnset(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{DialogStateOut: &embedded.DialogStateOut{VolumePercentage: 0}},
	)

	if channel.Volume() != 50 {
		t.Errorf("Volume 0 must be ignored, got %d", channel.Volume())
	}
}

func TestUnregisteredDeviceActionDoesNotAlterOutcome(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	outcome := runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{DeviceAction: &embedded.DeviceAction{
			DeviceRequestJson: `{"inputs":[{"intent":"action.devices.EXECUTE","payload":{"commands":[{"execution":[{"command":"action.devices.commands.Unknown","params":{}}]}]}}]}`,
		}},
	)

	if outcome {
		t.Error("An unregistered device action must not alter the outcome")
	}
}

func TestMalformedDeviceActionIsContained(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	runTurn(t, channel, NewConversationState(),
		&embedded.AssistResponse{DeviceAction: &embedded.DeviceAction{
			DeviceRequestJson: `{not json`,
		}},
		&embedded.AssistResponse{EventType: embedded.AssistResponse_END_OF_UTTERANCE},
	)

	if channel.Recording() {
		t.Error("The turn must continue past a malformed device action")
	}
}

func TestTurnWaitsForDispatchedDeviceActions(t *testing.T) {
	channel := newFakeChannel()
	channel.StartRecording()

	release := make(chan struct{})
	completed := false
	registry := device.NewRegistry("test-device", zap.NewNop())
	registry.Register("com.example.commands.Slow", func(ctx context.Context, params map[string]any) error {
		<-release
		completed = true
		return nil
	})

	r := newTestResponder(channel, NewConversationState())
	r.actions = registry
	go func() { close(release) }()

	_, err := r.processTurn(context.Background(), &scriptedStream{responses: []*embedded.AssistResponse{
		{DeviceAction: &embedded.DeviceAction{
			DeviceRequestJson: `{"inputs":[{"intent":"action.devices.EXECUTE","payload":{"commands":[{"execution":[{"command":"com.example.commands.Slow","params":{}}]}]}}]}`,
		}},
	}})
	if err != nil {
		t.Fatalf("processTurn failed: %v", err)
	}
	if !completed {
		t.Error("The turn must not finish before dispatched device actions complete")
	}
}
