package device

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Command names from the Assistant smart-home traits plus this client's
// custom sensor-report actions.
const (
	CmdOnOff              = "action.devices.commands.OnOff"
	CmdBrightnessAbsolute = "action.devices.commands.BrightnessAbsolute"
	CmdColorAbsolute      = "action.devices.commands.ColorAbsolute"
	CmdDock               = "action.devices.commands.Dock"
	CmdStartStop          = "action.devices.commands.StartStop"
	CmdPauseUnpause       = "action.devices.commands.PauseUnpause"
	CmdThermostatSetpoint = "action.devices.commands.ThermostatTemperatureSetpoint"

	CmdReportTemperature = "com.github.d1nch8g.commands.ReportTemperature"
	CmdReportHumidity    = "com.github.d1nch8g.commands.ReportHumidity"
	CmdReportPressure    = "com.github.d1nch8g.commands.ReportPressure"
	CmdReportAltitude    = "com.github.d1nch8g.commands.ReportAltitude"
	CmdReportLight       = "com.github.d1nch8g.commands.ReportLightSensor"

	CmdCommitCountReport = "com.github.d1nch8g.commands.CommitCountReport"
)

// Voice speaks a sensor report back to the user.
type Voice interface {
	Say(ctx context.Context, text string) error
}

// RegisterBuiltins populates the registry with the stock handlers: the
// smart-home trait commands acting on the board and the sensor reports
// spoken through voice.
func RegisterBuiltins(r *Registry, board Board, voice Voice, log *zap.Logger) {
	r.Register(CmdOnOff, func(ctx context.Context, params map[string]any) error {
		on, _ := params["on"].(bool)
		if on {
			log.Info("Turning device on")
		} else {
			log.Info("Turning device off")
		}
		return board.SetPower(on)
	})

	r.Register(CmdBrightnessAbsolute, func(ctx context.Context, params map[string]any) error {
		brightness, _ := params["brightness"].(float64)
		log.Info("Setting brightness", zap.Float64("percent", brightness))
		return nil
	})

	r.Register(CmdColorAbsolute, func(ctx context.Context, params map[string]any) error {
		color, _ := params["color"].(map[string]any)
		name, _ := color["name"].(string)
		log.Info("Setting color", zap.String("name", name))
		return nil
	})

	r.Register(CmdDock, func(ctx context.Context, params map[string]any) error {
		log.Info("Returning for charging")
		return nil
	})

	r.Register(CmdStartStop, func(ctx context.Context, params map[string]any) error {
		start, _ := params["start"].(bool)
		if start {
			log.Info("Starting device")
		} else {
			log.Info("Stopping device")
		}
		return nil
	})

	r.Register(CmdPauseUnpause, func(ctx context.Context, params map[string]any) error {
		pause, _ := params["pause"].(bool)
		if pause {
			log.Info("Setting pause")
		} else {
			log.Info("Unsetting pause")
		}
		return nil
	})

	r.Register(CmdThermostatSetpoint, func(ctx context.Context, params map[string]any) error {
		setpoint, _ := params["thermostatTemperatureSetpoint"].(float64)
		log.Info("Setting thermostat", zap.Float64("celsius", setpoint))
		return nil
	})

	r.Register(CmdReportTemperature, func(ctx context.Context, params map[string]any) error {
		value, err := board.Temperature()
		if err != nil {
			return fmt.Errorf("failed to read temperature: %w", err)
		}
		log.Info("Reporting room temperature", zap.Float64("celsius", value))
		return voice.Say(ctx, fmt.Sprintf("The room temperature is %.1f degrees", value))
	})

	r.Register(CmdReportHumidity, func(ctx context.Context, params map[string]any) error {
		value, err := board.Humidity()
		if err != nil {
			return fmt.Errorf("failed to read humidity: %w", err)
		}
		log.Info("Reporting humidity", zap.Float64("percent", value))
		return voice.Say(ctx, fmt.Sprintf("The humidity is %.0f percent", value))
	})

	r.Register(CmdReportPressure, func(ctx context.Context, params map[string]any) error {
		value, err := board.Pressure()
		if err != nil {
			return fmt.Errorf("failed to read pressure: %w", err)
		}
		log.Info("Reporting pressure", zap.Float64("hpa", value))
		return voice.Say(ctx, fmt.Sprintf("The air pressure is %.1f hectopascals", value))
	})

	r.Register(CmdReportAltitude, func(ctx context.Context, params map[string]any) error {
		value, err := board.Altitude()
		if err != nil {
			return fmt.Errorf("failed to read altitude: %w", err)
		}
		log.Info("Reporting altitude", zap.Float64("meters", value))
		return voice.Say(ctx, fmt.Sprintf("The altitude is %.1f meters", value))
	})

	r.Register(CmdReportLight, func(ctx context.Context, params map[string]any) error {
		value, err := board.LightLevel()
		if err != nil {
			return fmt.Errorf("failed to read light sensor: %w", err)
		}
		log.Info("Reporting light sensor ratio", zap.Float64("percent", value))
		return voice.Say(ctx, fmt.Sprintf("The light sensor ratio is %.2f percent", value))
	})
}

// repoOwners maps the repository names the report command accepts to
// their github owners.
var repoOwners = map[string]string{
	"faasshell":  "naohirotamura",
	"buildah":    "containers",
	"kubernetes": "kubernetes",
}

// RegisterCommitCountReport adds the commit count report command: the
// FaaS shell aggregates the repository's commit activity over the
// requested window and the result row is spoken back. A failed report is
// spoken as such and does not fail the turn.
func RegisterCommitCountReport(r *Registry, shell *ShellClient, voice Voice, log *zap.Logger) {
	r.Register(CmdCommitCountReport, func(ctx context.Context, params map[string]any) error {
		repository, _ := params["repository"].(string)
		owner, ok := repoOwners[repository]
		if !ok {
			log.Warn("Unknown repository for commit count report", zap.String("repository", repository))
			return voice.Say(ctx, fmt.Sprintf("I do not know the repository %s", repository))
		}

		now := time.Now()
		since := parseReportDate(params["start"], now.AddDate(0, 0, -30))
		until := parseReportDate(params["end"], now)
		log.Info("Querying commit count report",
			zap.String("repository", repository),
			zap.Time("since", since), zap.Time("until", until))

		report, err := shell.CommitCountReport(ctx, owner, repository, since, until)
		if err != nil {
			log.Warn("Commit count report failed", zap.Error(err))
			return voice.Say(ctx, "The commit count report returned an error")
		}
		log.Info("Commit count report returned",
			zap.String("author", report.Author), zap.Int("commits", report.Commits))
		return voice.Say(ctx, fmt.Sprintf(
			"According to the commit count report, %s contributed %d commits to repository %s",
			report.Author, report.Commits, report.Repository))
	})
}

// parseReportDate reads a YYYY-MM-DD parameter, falling back when the
// parameter is absent or malformed.
func parseReportDate(param any, fallback time.Time) time.Time {
	s, _ := param.(string)
	if s == "" {
		return fallback
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fallback
	}
	return t
}
