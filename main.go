package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/d1nch8g/gassist/assistant"
	"github.com/d1nch8g/gassist/audio"
	"github.com/d1nch8g/gassist/auth"
	"github.com/d1nch8g/gassist/config"
	"github.com/d1nch8g/gassist/device"
	"github.com/d1nch8g/gassist/display"
	"github.com/d1nch8g/gassist/sound"
	"github.com/d1nch8g/gassist/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var (
		inputFile   = flag.String("i", "", "path to input audio file; uses audio capture if missing")
		outputFile  = flag.String("o", "", "path to output audio file; uses audio playback if missing")
		once        = flag.Bool("once", false, "force termination after a single conversation")
		enableShow  = flag.Bool("display", false, "enable visual display of assistant responses")
		verbose     = flag.Bool("v", false, "verbose logging")
		speakLocal  = flag.Bool("speak-reports", false, "voice sensor reports through cloud text-to-speech")
		powerOnCmd  = flag.String("power-on-cmd", "", "command run to switch the appliance on")
		powerOffCmd = flag.String("power-off-cmd", "", "command run to switch the appliance off")
	)
	flag.StringVar(&cfg.Language, "lang", cfg.Language, "language code of the assistant")
	flag.StringVar(&cfg.CredentialsPath, "credentials", cfg.CredentialsPath, "path to read OAuth2 credentials")
	flag.StringVar(&cfg.ProjectID, "project-id", cfg.ProjectID, "developer project id used for device registration")
	flag.StringVar(&cfg.DeviceModelID, "device-model-id", cfg.DeviceModelID, "device model identifier")
	flag.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "registered device instance identifier")
	flag.StringVar(&cfg.APIEndpoint, "api-endpoint", cfg.APIEndpoint, "address of the Assistant API service")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Interrupted, shutting down")
		cancel()
	}()

	// Configuration errors abort before any turn starts.
	tokenSource, err := auth.LoadTokenSource(ctx, cfg.CredentialsPath)
	if err != nil {
		logger.Fatal("Failed to load OAuth2 credentials; run the oauth bootstrap tool first",
			zap.Error(err))
	}

	if cfg.DeviceID == "" || cfg.DeviceModelID == "" {
		info, err := auth.LoadOrRegisterDevice(ctx, tokenSource, cfg.APIHost(),
			cfg.ProjectID, cfg.DeviceModelID, cfg.DeviceConfigPath, logger)
		if err != nil {
			logger.Fatal("Failed to resolve device registration", zap.Error(err))
		}
		cfg.DeviceID = info.ID
		cfg.DeviceModelID = info.ModelID
	}

	source, sink, err := openAudio(cfg, *inputFile, *outputFile)
	if err != nil {
		logger.Fatal("Failed to open audio", zap.Error(err))
	}
	stream := audio.NewConversationStream(source, sink, cfg.IterSize, int32(cfg.Volume))

	conn, err := auth.Dial(cfg.APIEndpoint, tokenSource)
	if err != nil {
		logger.Fatal("Failed to connect to Assistant API", zap.Error(err))
	}
	defer conn.Close()
	logger.Info("Connecting", zap.String("endpoint", cfg.APIEndpoint))

	var voice tts.Synthesizer = tts.Silent{}
	if *speakLocal {
		voice = tts.NewCloudSynthesizer(ctx, tokenSource, sound.NewPortaudioPlayer(), cfg.Language, logger)
	}
	var board device.Board = device.NoopBoard{}
	if *powerOnCmd != "" || *powerOffCmd != "" {
		board = device.ScriptBoard{PowerOnCommand: *powerOnCmd, PowerOffCommand: *powerOffCmd}
	}
	actions := device.NewRegistry(cfg.DeviceID, logger)
	device.RegisterBuiltins(actions, board, voice, logger)
	if cfg.FaasShellURL != "" {
		shell := device.NewShellClient(cfg.FaasShellURL, cfg.FaasShellUser, cfg.FaasShellSecret, logger)
		device.RegisterCommitCountReport(actions, shell, voice, logger)
	}

	var screen display.Display = display.Noop{}
	if *enableShow {
		server := display.NewServer(logger)
		server.Start(cfg.DisplayAddr)
		screen = server
	}

	assist := assistant.New(assistant.Config{
		LanguageCode:  cfg.Language,
		DeviceModelID: cfg.DeviceModelID,
		DeviceID:      cfg.DeviceID,
		Display:       *enableShow,
		Deadline:      cfg.Deadline,
	}, conn, stream, actions, screen, logger)
	defer assist.Close()

	fileMode := *inputFile != "" || *outputFile != ""
	stdin := bufio.NewReader(os.Stdin)
	waitForTrigger := !*once && !fileMode

	for {
		if waitForTrigger {
			fmt.Println("Press Enter to send a new request...")
			if _, err := stdin.ReadString('\n'); err != nil {
				return
			}
		}
		continueConversation, err := assist.Assist(ctx)
		if err != nil {
			logger.Fatal("Assist request failed", zap.Error(err))
		}
		if fileMode {
			return
		}
		// Wait for a fresh trigger unless a follow-on turn is expected.
		waitForTrigger = !continueConversation
		if *once && !continueConversation {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// openAudio selects the conversation source and sink: WAV files when
// paths are given, the default audio device otherwise.
func openAudio(cfg *config.Config, inputFile, outputFile string) (audio.Source, audio.Sink, error) {
	var (
		source audio.Source
		sink   audio.Sink
		err    error
	)
	if inputFile != "" {
		source, err = audio.OpenWaveSource(inputFile, cfg.BlockSize)
	} else {
		source, err = audio.NewMicrophone(int32(cfg.SampleRate), cfg.BlockSize)
	}
	if err != nil {
		return nil, nil, err
	}

	if outputFile != "" {
		sink, err = audio.CreateWaveSink(outputFile, source.SampleRate())
	} else {
		sink, err = audio.NewSpeaker(source.SampleRate(), cfg.BlockSize, cfg.FlushSize)
	}
	if err != nil {
		source.Close()
		return nil, nil, err
	}
	return source, sink, nil
}

func newLogger(verbose bool) *zap.Logger {
	logCfg := zap.NewDevelopmentConfig()
	if !verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
