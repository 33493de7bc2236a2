package assistant

import (
	"context"
	"io"

	"go.uber.org/zap"
	embedded "google.golang.org/genproto/googleapis/assistant/embedded/v1alpha2"

	"github.com/d1nch8g/gassist/audio"
)

// RequestEncoder builds the outgoing message sequence for one turn: a
// single configuration request built from the session parameters and the
// current conversation state, followed by the recorded audio chunks.
type RequestEncoder struct {
	cfg    Config
	state  *ConversationState
	stream audio.Channel
	log    *zap.Logger
}

// NewRequestEncoder creates an encoder for one turn.
func NewRequestEncoder(cfg Config, state *ConversationState, stream audio.Channel, log *zap.Logger) *RequestEncoder {
	return &RequestEncoder{cfg: cfg, state: state, stream: stream, log: log}
}

// Encode returns a lazy, single-pass request sequence. Each element is
// produced only once the transport has consumed the previous one; the
// sequence ends when recording stops and the buffered audio is drained.
func (e *RequestEncoder) Encode(ctx context.Context) <-chan *embedded.AssistRequest {
	out := make(chan *embedded.AssistRequest, 1)
	go func() {
		defer close(out)

		// The first request carries the config and no audio data.
		config := e.buildConfig()
		// Later turns continue the conversation the service now knows
		// about.
		e.state.ClearNew()
		select {
		case out <- &embedded.AssistRequest{
			Type: &embedded.AssistRequest_Config{Config: config},
		}:
		case <-ctx.Done():
			return
		}

		for {
			chunk, err := e.stream.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				e.log.Error("Failed to read audio chunk", zap.Error(err))
				return
			}
			select {
			case out <- &embedded.AssistRequest{
				Type: &embedded.AssistRequest_AudioIn{AudioIn: chunk},
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (e *RequestEncoder) buildConfig() *embedded.AssistConfig {
	token, isNew := e.state.Snapshot()
	config := &embedded.AssistConfig{
		Type: &embedded.AssistConfig_AudioInConfig{
			AudioInConfig: &embedded.AudioInConfig{
				Encoding:        embedded.AudioInConfig_LINEAR16,
				SampleRateHertz: e.stream.SampleRate(),
			},
		},
		AudioOutConfig: &embedded.AudioOutConfig{
			Encoding:         embedded.AudioOutConfig_LINEAR16,
			SampleRateHertz:  e.stream.SampleRate(),
			VolumePercentage: e.stream.Volume(),
		},
		DialogStateIn: &embedded.DialogStateIn{
			LanguageCode:      e.cfg.LanguageCode,
			ConversationState: token,
			IsNewConversation: isNew,
		},
		DeviceConfig: &embedded.DeviceConfig{
			DeviceId:      e.cfg.DeviceID,
			DeviceModelId: e.cfg.DeviceModelID,
		},
	}
	if e.cfg.Display {
		config.ScreenOutConfig = &embedded.ScreenOutConfig{
			ScreenMode: embedded.ScreenOutConfig_PLAYING,
		}
	}
	return config
}
