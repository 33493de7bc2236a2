package device

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func executeRequest(command, params string) string {
	return `{"inputs":[{"intent":"action.devices.EXECUTE","payload":{"commands":[{"execution":[{"command":"` +
		command + `","params":` + params + `}]}]}}]}`
}

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	var gotParams map[string]any
	registry.Register("action.devices.commands.OnOff", func(ctx context.Context, params map[string]any) error {
		gotParams = params
		return nil
	})

	pending := registry.Dispatch(context.Background(), executeRequest("action.devices.commands.OnOff", `{"on":true}`))
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending action, got %d", len(pending))
	}
	if err := pending[0].Wait(context.Background()); err != nil {
		t.Fatalf("Expected handler success, got %v", err)
	}
	if on, _ := gotParams["on"].(bool); !on {
		t.Errorf("Expected params to carry on=true, got %v", gotParams)
	}
}

func TestDispatchIgnoresUnregisteredCommands(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())

	pending := registry.Dispatch(context.Background(), executeRequest("action.devices.commands.Unknown", `{}`))
	if len(pending) != 0 {
		t.Errorf("Expected no pending actions for an unregistered command, got %d", len(pending))
	}
}

func TestDispatchSkipsMalformedJSON(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	registry.Register("action.devices.commands.OnOff", func(ctx context.Context, params map[string]any) error {
		t.Error("Handler must not run for a malformed request")
		return nil
	})

	pending := registry.Dispatch(context.Background(), `{"inputs": [`)
	if len(pending) != 0 {
		t.Errorf("Expected no pending actions for malformed JSON, got %d", len(pending))
	}
}

func TestDispatchIgnoresNonExecuteIntents(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	registry.Register("action.devices.commands.OnOff", func(ctx context.Context, params map[string]any) error {
		t.Error("Handler must not run for a QUERY intent")
		return nil
	})

	request := `{"inputs":[{"intent":"action.devices.QUERY","payload":{"commands":[{"execution":[{"command":"action.devices.commands.OnOff","params":{}}]}]}}]}`
	if pending := registry.Dispatch(context.Background(), request); len(pending) != 0 {
		t.Errorf("Expected no pending actions, got %d", len(pending))
	}
}

func TestDispatchFiltersOnDeviceID(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	ran := make(chan struct{}, 2)
	registry.Register("action.devices.commands.OnOff", func(ctx context.Context, params map[string]any) error {
		ran <- struct{}{}
		return nil
	})

	other := `{"inputs":[{"intent":"action.devices.EXECUTE","payload":{"commands":[{"devices":[{"id":"device-2"}],"execution":[{"command":"action.devices.commands.OnOff","params":{}}]}]}}]}`
	if pending := registry.Dispatch(context.Background(), other); len(pending) != 0 {
		t.Errorf("Expected command for another device to be skipped, got %d pending", len(pending))
	}

	mine := `{"inputs":[{"intent":"action.devices.EXECUTE","payload":{"commands":[{"devices":[{"id":"device-1"}],"execution":[{"command":"action.devices.commands.OnOff","params":{}}]}]}}]}`
	pending := registry.Dispatch(context.Background(), mine)
	if len(pending) != 1 {
		t.Fatalf("Expected command targeting this device to run, got %d pending", len(pending))
	}
	pending[0].Wait(context.Background())
}

func TestHandlerErrorIsContainedInHandle(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	handlerErr := errors.New("sensor timeout")
	registry.Register("com.example.commands.Failing", func(ctx context.Context, params map[string]any) error {
		return handlerErr
	})

	pending := registry.Dispatch(context.Background(), executeRequest("com.example.commands.Failing", `{}`))
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending action, got %d", len(pending))
	}
	if err := pending[0].Wait(context.Background()); !errors.Is(err, handlerErr) {
		t.Errorf("Expected the handler error in the handle, got %v", err)
	}
}

func TestHandlerPanicIsContainedInHandle(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	registry.Register("com.example.commands.Panicking", func(ctx context.Context, params map[string]any) error {
		panic("boom")
	})

	pending := registry.Dispatch(context.Background(), executeRequest("com.example.commands.Panicking", `{}`))
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending action, got %d", len(pending))
	}
	if err := pending[0].Wait(context.Background()); err == nil {
		t.Error("Expected a panic to surface as the handle's error")
	}
}

func TestBuiltinsTolerateMissingParams(t *testing.T) {
	registry := NewRegistry("device-1", zap.NewNop())
	RegisterBuiltins(registry, NoopBoard{}, silentVoice{}, zap.NewNop())

	for _, command := range []string{
		CmdOnOff, CmdBrightnessAbsolute, CmdColorAbsolute, CmdDock,
		CmdStartStop, CmdPauseUnpause, CmdThermostatSetpoint,
		CmdReportTemperature, CmdReportHumidity, CmdReportPressure,
		CmdReportAltitude, CmdReportLight,
	} {
		pending := registry.Dispatch(context.Background(), executeRequest(command, `{}`))
		if len(pending) != 1 {
			t.Fatalf("Expected %s to be registered", command)
		}
		if err := pending[0].Wait(context.Background()); err != nil {
			t.Errorf("%s must tolerate missing params, got %v", command, err)
		}
	}
}

type silentVoice struct{}

func (silentVoice) Say(context.Context, string) error { return nil }
