package assistant

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	embedded "google.golang.org/genproto/googleapis/assistant/embedded/v1alpha2"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// logAssistRequestWithoutAudio debug-logs a request with the raw audio
// bytes replaced by their size, keeping traces readable.
func logAssistRequestWithoutAudio(log *zap.Logger, req *embedded.AssistRequest) {
	entry := log.Check(zapcore.DebugLevel, "assist request")
	if entry == nil {
		return
	}
	clone := proto.Clone(req).(*embedded.AssistRequest)
	if audioIn := clone.GetAudioIn(); len(audioIn) > 0 {
		clone.Type = &embedded.AssistRequest_AudioIn{
			AudioIn: []byte(fmt.Sprintf("(%d bytes)", len(audioIn))),
		}
	}
	entry.Write(zap.String("request", prototext.Format(clone)))
}

// logAssistResponseWithoutAudio debug-logs a response the same way.
func logAssistResponseWithoutAudio(log *zap.Logger, resp *embedded.AssistResponse) {
	entry := log.Check(zapcore.DebugLevel, "assist response")
	if entry == nil {
		return
	}
	clone := proto.Clone(resp).(*embedded.AssistResponse)
	if audioOut := clone.GetAudioOut(); len(audioOut.GetAudioData()) > 0 {
		audioOut.AudioData = []byte(fmt.Sprintf("(%d bytes)", len(audioOut.AudioData)))
	}
	entry.Write(zap.String("response", prototext.Format(clone)))
}
