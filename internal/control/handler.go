// Package control is the inbound control plane: MQTT commands and a small
// HTTP surface. Both fronts parse into the same command shape and run
// through the same dispatch, so behavior cannot drift between them.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/xabufr/memocadre/internal/config"
	"github.com/xabufr/memocadre/internal/types"
)

// Command represents a control plane command.
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// Response represents a command response.
type Response struct {
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// CommandCallbacks contains the callback functions commands dispatch to.
// Slideshow callbacks enqueue for the render loop and return immediately;
// only set_option does synchronous work (validating and persisting).
type CommandCallbacks struct {
	OnNext       func() error
	OnPrevious   func() error
	OnReload     func() error
	OnSetOption  func(path string, value any) error
	OnDisplayOn  func() error
	OnDisplayOff func() error
	OnGetStatus  func() types.Status
	OnShutdown   func() error
}

// Handler owns the MQTT connection and processes control commands.
type Handler struct {
	cfg       *config.Config
	callbacks CommandCallbacks
	client    mqtt.Client
	commands  chan Command

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewHandler creates a control plane handler.
func NewHandler(cfg *config.Config, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		callbacks: callbacks,
		commands:  make(chan Command, 10),
	}
}

// Connect establishes the MQTT connection with automatic reconnect.
func (h *Handler) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", h.cfg.MQTT.Broker))
	opts.SetClientID(h.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		h.mu.Lock()
		h.connected = true
		h.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", h.cfg.MQTT.Broker,
			"client_id", h.cfg.InstanceID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		h.mu.Lock()
		h.connected = false
		h.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", h.cfg.MQTT.Broker,
		)
	}

	h.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", h.cfg.MQTT.Broker)
	token := h.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()
	return nil
}

// Start subscribes to the control topic and begins processing commands.
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	go h.processCommands(ctx)

	slog.Info("control plane handler started")
	return nil
}

// Stop unsubscribes and disconnects.
func (h *Handler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
		token.WaitTimeout(2 * time.Second)
		h.client.Disconnect(250)
	}

	h.mu.Lock()
	h.connected = false
	h.mu.Unlock()

	slog.Info("control plane handler stopped")
	return nil
}

// PublishStatus publishes a status snapshot to the status topic.
func (h *Handler) PublishStatus(status types.Status) error {
	if !h.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	topic := h.cfg.MQTT.Topics.Status
	qos := h.cfg.MQTT.QoS["status"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		h.countError()
		return fmt.Errorf("status publish timeout")
	}
	if err := token.Error(); err != nil {
		h.countError()
		return fmt.Errorf("status publish failed: %w", err)
	}

	h.mu.Lock()
	h.published++
	h.mu.Unlock()
	return nil
}

// messageHandler runs on the paho callback goroutine; it only parses and
// enqueues so the broker connection is never blocked on command execution.
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.sendResponse(h.Execute(cmd))
		}
	}
}

// Execute dispatches one command and builds its response. It is shared by
// the MQTT path and the HTTP server.
func (h *Handler) Execute(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command}

	switch cmd.Command {
	case "next":
		h.simple(&resp, h.callbacks.OnNext)

	case "previous":
		h.simple(&resp, h.callbacks.OnPrevious)

	case "reload":
		h.simple(&resp, h.callbacks.OnReload)

	case "display_on":
		h.simple(&resp, h.callbacks.OnDisplayOn)

	case "display_off":
		h.simple(&resp, h.callbacks.OnDisplayOff)

	case "set_option":
		if h.callbacks.OnSetOption == nil {
			resp.Status = "error"
			resp.Error = "set_option not implemented"
			break
		}
		path, ok := cmd.Params["path"].(string)
		if !ok {
			resp.Status = "error"
			resp.Error = "missing or invalid 'path' parameter (expected string)"
			break
		}
		value, ok := cmd.Params["value"]
		if !ok {
			resp.Status = "error"
			resp.Error = "missing 'value' parameter"
			break
		}
		if err := h.callbacks.OnSetOption(path, value); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]any{
			"path":  path,
			"value": value,
		}

	case "get_status":
		if h.callbacks.OnGetStatus == nil {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
			break
		}
		status := h.callbacks.OnGetStatus()
		resp.Status = "success"
		resp.Data = statusData(status)

	case "shutdown":
		if h.callbacks.OnShutdown == nil {
			resp.Status = "error"
			resp.Error = "shutdown not implemented"
			break
		}
		slog.Warn("shutdown command received via control plane")
		resp.Status = "success"
		resp.Data = map[string]any{"shutdown_initiated": true}
		// Respond first, then trigger; the connection goes away with us.
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := h.callbacks.OnShutdown(); err != nil {
				slog.Error("shutdown callback failed", "error", err)
			}
		}()

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

func (h *Handler) simple(resp *Response, cb func() error) {
	if cb == nil {
		resp.Status = "error"
		resp.Error = fmt.Sprintf("%s not implemented", resp.CommandAck)
		return
	}
	if err := cb(); err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return
	}
	resp.Status = "success"
}

func statusData(s types.Status) map[string]any {
	data := map[string]any{
		"state":            string(s.State),
		"display_on":       s.DisplayOn,
		"progress":         s.Progress,
		"queue_ready":      s.QueueReady,
		"frames_presented": s.FramesSent,
	}
	if s.AssetID != "" {
		data["asset_id"] = s.AssetID
		data["location"] = s.Location
		data["taken_at"] = s.TakenAt.Format(time.RFC3339)
	}
	return data
}

// sendResponse publishes a response on the status topic.
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Status
	qos := h.cfg.MQTT.QoS["status"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}

// Stats returns connection statistics.
func (h *Handler) Stats() (connected bool, published, errors uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected, h.published, h.errors
}

func (h *Handler) isConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

func (h *Handler) countError() {
	h.mu.Lock()
	h.errors++
	h.mu.Unlock()
}
