// Package device dispatches device-action commands requested by the
// Assistant to locally registered handlers.
package device

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// executeIntent is the only device request intent carrying commands.
const executeIntent = "action.devices.EXECUTE"

// Command is one decoded device-action entry: a reverse-DNS command name
// and its flat parameter object.
type Command struct {
	Name   string
	Params map[string]any
}

// Handler executes one device command. Params may carry extra fields and
// may omit optional ones; handlers tolerate both.
type Handler func(ctx context.Context, params map[string]any) error

// Pending is a handle on an in-flight handler execution.
type Pending struct {
	command string
	done    chan struct{}
	err     error
}

// Command returns the command name this handle belongs to.
func (p *Pending) Command() string {
	return p.command
}

// Wait blocks until the execution finishes and returns its error, if any.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry maps command names to handlers. It is populated once before
// the first turn and read without locking during dispatch.
type Registry struct {
	deviceID string
	handlers map[string]Handler
	log      *zap.Logger
}

// NewRegistry creates an empty registry for the given device instance.
func NewRegistry(deviceID string, log *zap.Logger) *Registry {
	return &Registry{
		deviceID: deviceID,
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Register binds a command name to its handler, replacing any previous
// binding.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Wire shape of the EXECUTE device request payload.
type deviceRequest struct {
	Inputs []requestInput `json:"inputs"`
}

type requestInput struct {
	Intent  string `json:"intent"`
	Payload struct {
		Commands []commandSet `json:"commands"`
	} `json:"payload"`
}

type commandSet struct {
	Devices   []deviceRef `json:"devices"`
	Execution []execution `json:"execution"`
}

type deviceRef struct {
	ID string `json:"id"`
}

type execution struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// Dispatch decodes one device request payload and starts each matching
// registered command on its own goroutine, returning their handles.
// Malformed payloads and unregistered command names are skipped without
// interrupting the turn.
func (r *Registry) Dispatch(ctx context.Context, requestJSON string) []*Pending {
	var req deviceRequest
	if err := json.Unmarshal([]byte(requestJSON), &req); err != nil {
		r.log.Warn("Skipping malformed device request", zap.Error(err))
		return nil
	}

	var pending []*Pending
	for _, input := range req.Inputs {
		if input.Intent != executeIntent {
			continue
		}
		for _, set := range input.Payload.Commands {
			if !r.matches(set.Devices) {
				continue
			}
			for _, exec := range set.Execution {
				cmd := Command{Name: exec.Command, Params: exec.Params}
				pending = append(pending, r.Handle(ctx, cmd)...)
			}
		}
	}
	return pending
}

// Handle starts the registered handler for one decoded command and
// returns its handle. Unregistered command names yield no handles: the
// command set is open-ended and versioned independently of this client.
func (r *Registry) Handle(ctx context.Context, cmd Command) []*Pending {
	handler, ok := r.handlers[cmd.Name]
	if !ok {
		r.log.Debug("No handler for device command", zap.String("command", cmd.Name))
		return nil
	}
	r.log.Info("Executing device command", zap.String("command", cmd.Name))
	p := &Pending{command: cmd.Name, done: make(chan struct{})}
	go r.run(ctx, p, handler, cmd.Params)
	return []*Pending{p}
}

// matches reports whether a command set targets this device. A request
// without an explicit device list applies.
func (r *Registry) matches(devices []deviceRef) bool {
	if len(devices) == 0 {
		return true
	}
	for _, d := range devices {
		if d.ID == r.deviceID {
			return true
		}
	}
	return false
}

// run executes one handler, containing errors and panics in the handle so
// a misbehaving action never aborts the turn.
func (r *Registry) run(ctx context.Context, p *Pending, h Handler, params map[string]any) {
	defer close(p.done)
	defer func() {
		if rec := recover(); rec != nil {
			p.err = fmt.Errorf("device handler panicked: %v", rec)
		}
	}()
	p.err = h(ctx, params)
}
