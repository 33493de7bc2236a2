package assistant

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	embedded "google.golang.org/genproto/googleapis/assistant/embedded/v1alpha2"

	"github.com/d1nch8g/gassist/audio"
	"github.com/d1nch8g/gassist/device"
	"github.com/d1nch8g/gassist/display"
)

// assistReceiver is the receive half of the duplex Assist call.
type assistReceiver interface {
	Recv() (*embedded.AssistResponse, error)
}

// responder consumes one turn's inbound responses and drives the audio
// channel transitions: recording stops at end of utterance (or on
// barge-in), playback starts at the first non-empty audio payload and
// stops unconditionally once the stream ends. It is the sole owner of
// channel mode transitions during a turn.
type responder struct {
	stream  audio.Channel
	state   *ConversationState
	actions *device.Registry
	screen  display.Display
	display bool
	log     *zap.Logger
}

// processTurn drains the inbound stream, then joins every device action
// it dispatched before reporting whether the conversation continues.
func (r *responder) processTurn(ctx context.Context, rpc assistReceiver) (bool, error) {
	continueConversation := false
	var pending []*device.Pending

	for {
		resp, err := rpc.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, fmt.Errorf("assist stream failed: %w", err)
		}
		logAssistResponseWithoutAudio(r.log, resp)
		pending = append(pending, r.handle(ctx, resp, &continueConversation)...)
	}

	if len(pending) > 0 {
		r.log.Info("Waiting for device executions to complete.")
		for _, p := range pending {
			if err := p.Wait(ctx); err != nil {
				r.log.Warn("Device execution failed",
					zap.String("command", p.Command()), zap.Error(err))
			}
		}
	}
	r.log.Info("Finished playing assistant response.")
	if err := r.stream.StopPlayback(); err != nil {
		return false, fmt.Errorf("failed to stop playback: %w", err)
	}
	return continueConversation, nil
}

// handle applies the independent per-response rules. The rules are not
// mutually exclusive; one response may trigger several of them.
func (r *responder) handle(ctx context.Context, resp *embedded.AssistResponse, continueConversation *bool) []*device.Pending {
	if resp.GetEventType() == embedded.AssistResponse_END_OF_UTTERANCE {
		r.log.Info("End of audio request detected.")
		if err := r.stream.StopRecording(); err != nil {
			r.log.Warn("Failed to stop recording", zap.Error(err))
		}
	}

	if results := resp.GetSpeechResults(); len(results) > 0 {
		transcripts := make([]string, len(results))
		for i, res := range results {
			transcripts[i] = res.GetTranscript()
		}
		r.log.Info("Transcript of user request",
			zap.String("transcript", strings.Join(transcripts, " ")))
	}

	if data := resp.GetAudioOut().GetAudioData(); len(data) > 0 {
		if !r.stream.Playing() {
			// Barge-in: the service may start speaking before any
			// end-of-utterance event.
			if err := r.stream.StopRecording(); err != nil {
				r.log.Warn("Failed to stop recording", zap.Error(err))
			}
			if err := r.stream.StartPlayback(); err != nil {
				r.log.Error("Failed to start playback", zap.Error(err))
			}
			r.log.Info("Playing assistant response.")
		}
		if err := r.stream.Write(data); err != nil {
			r.log.Error("Failed to play response audio", zap.Error(err))
		}
	}

	if dialogState := resp.GetDialogStateOut(); dialogState != nil {
		if token := dialogState.GetConversationState(); len(token) > 0 {
			r.state.SetToken(token)
		}
		if volume := dialogState.GetVolumePercentage(); volume != 0 {
			r.log.Info("Setting volume", zap.Int32("percentage", volume))
			r.stream.SetVolume(volume)
		}
		switch dialogState.GetMicrophoneMode() {
		case embedded.DialogStateOut_DIALOG_FOLLOW_ON:
			*continueConversation = true
			r.log.Info("Expecting follow-on query from user.")
		case embedded.DialogStateOut_CLOSE_MICROPHONE:
			*continueConversation = false
		}
	}

	var pending []*device.Pending
	if requestJSON := resp.GetDeviceAction().GetDeviceRequestJson(); requestJSON != "" {
		pending = r.actions.Dispatch(ctx, requestJSON)
	}

	if r.display {
		if data := resp.GetScreenOut().GetData(); len(data) > 0 {
			r.screen.Show(data)
		}
	}
	return pending
}
