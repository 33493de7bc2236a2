package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hajimehoshi/go-mp3"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/d1nch8g/gassist/sound"
)

const synthesizeEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// CloudSynthesizer calls the cloud text-to-speech REST API and plays the
// returned MP3 audio through a local player.
type CloudSynthesizer struct {
	httpClient *http.Client
	player     sound.Player
	language   string
	log        *zap.Logger
}

var _ Synthesizer = (*CloudSynthesizer)(nil)

// NewCloudSynthesizer builds a synthesizer authorized by ts, speaking the
// given language.
func NewCloudSynthesizer(ctx context.Context, ts oauth2.TokenSource, player sound.Player, language string, log *zap.Logger) *CloudSynthesizer {
	return &CloudSynthesizer{
		httpClient: oauth2.NewClient(ctx, ts),
		player:     player,
		language:   language,
		log:        log,
	}
}

func (c *CloudSynthesizer) Say(ctx context.Context, text string) error {
	audio, rate, err := c.synthesize(ctx, text)
	if err != nil {
		return err
	}

	audioData := make(chan []byte, 16)
	go func() {
		defer close(audioData)
		buf := make([]byte, 4096)
		for {
			n, err := audio.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case audioData <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				c.log.Error("Failed to decode synthesized audio", zap.Error(err))
				return
			}
		}
	}()
	return c.player.PlayStream(ctx, rate, audioData)
}

// synthesize requests MP3 speech for text and returns a 16-bit LE stereo
// PCM decoder over it together with its sample rate.
func (c *CloudSynthesizer) synthesize(ctx context.Context, text string) (io.Reader, int, error) {
	var req synthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = c.language
	req.AudioConfig.AudioEncoding = "MP3"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, synthesizeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call synthesis API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("synthesis API failed with status %d: %s", resp.StatusCode, string(detail))
	}

	var response synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, 0, fmt.Errorf("failed to decode synthesis response: %w", err)
	}
	mp3Data, err := base64.StdEncoding.DecodeString(response.AudioContent)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode audio content: %w", err)
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode synthesized mp3: %w", err)
	}
	return decoder, decoder.SampleRate(), nil
}
