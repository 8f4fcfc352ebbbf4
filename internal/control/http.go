package control

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/xabufr/memocadre/internal/config"
)

// Server is the HTTP face of the control plane, for the local network:
// status checks from dashboards and commands from anything that cannot
// speak MQTT. It reuses the handler's dispatch so both fronts behave
// identically.
type Server struct {
	cfg     *config.Config
	handler *Handler
	app     *fiber.App
}

// NewServer creates the HTTP control server.
func NewServer(cfg *config.Config, handler *Handler) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "memocadre",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s := &Server{cfg: cfg, handler: handler, app: app}

	app.Get("/status", s.getStatus)
	app.Post("/control", s.postControl)

	return s
}

// Start serves until Shutdown. It blocks, so callers run it in a
// goroutine; the returned error is nil after a clean Shutdown.
func (s *Server) Start() error {
	slog.Info("http control server listening", "addr", s.cfg.HTTP.Addr)
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(2 * time.Second)
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	if s.handler.callbacks.OnGetStatus == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "status not available",
		})
	}
	return c.JSON(s.handler.callbacks.OnGetStatus())
}

func (s *Server) postControl(c *fiber.Ctx) error {
	var cmd Command
	if err := c.BodyParser(&cmd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	slog.Info("http control command received", "command", cmd.Command)

	resp := s.handler.Execute(cmd)
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if resp.Status == "error" {
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}
	return c.JSON(resp)
}
