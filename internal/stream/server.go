package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"helixsim/internal/growth"
	"helixsim/internal/platform"
)

const csvFileName = "microbe_growth_data.csv"

type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageDriver   MessageType = "driver"
)

// Message is the envelope sent to websocket clients.
type Message struct {
	Type     MessageType            `json:"type"`
	Snapshot *growth.Snapshot       `json:"snapshot,omitempty"`
	Events   []growth.Event         `json:"events,omitempty"`
	Driver   *platform.DriverStatus `json:"driver,omitempty"`
}

type StateResponse struct {
	Snapshot growth.Snapshot       `json:"snapshot"`
	Driver   platform.DriverStatus `json:"driver"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes one growth simulation and the driver stepping it.
type Server struct {
	sim    *growth.Simulation
	driver *platform.Driver
	hub    *Hub
	logger *log.Logger
	mux    *http.ServeMux
}

func NewServer(sim *growth.Simulation, driver *platform.Driver, hub *Hub, logger *log.Logger) *Server {
	s := &Server{sim: sim, driver: driver, hub: hub, logger: logger, mux: http.NewServeMux()}
	s.mux.Handle("GET /ws", hub)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/strains", s.handleStrains)
	s.mux.HandleFunc("POST /api/strain", s.handleStrain)
	s.mux.HandleFunc("POST /api/environment", s.handleEnvironment)
	s.mux.HandleFunc("POST /api/antibiotic", s.handleAntibiotic)
	s.mux.HandleFunc("POST /api/control/{command}", s.handleControl)
	s.mux.HandleFunc("GET /api/export.csv", s.handleExport)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Stepper returns a growth stepper that publishes every tick and reset.
func (s *Server) Stepper(maxTicks int) *platform.GrowthStepper {
	return &platform.GrowthStepper{
		Sim:      s.sim,
		MaxTicks: maxTicks,
		OnTick:   s.PublishTick,
		OnReset:  func(snap growth.Snapshot) { s.PublishTick(snap, nil) },
	}
}

func (s *Server) PublishTick(snap growth.Snapshot, events []growth.Event) {
	for _, event := range events {
		s.logger.Info("adaptation event", "kind", event.Kind, "step", event.Step, "message", event.Message)
	}
	if err := s.hub.Broadcast(Message{Type: MessageSnapshot, Snapshot: &snap, Events: events}); err != nil {
		s.logger.Error("broadcast snapshot", "err", err)
	}
}

func (s *Server) PublishDriver(status platform.DriverStatus) {
	if err := s.hub.Broadcast(Message{Type: MessageDriver, Driver: &status}); err != nil {
		s.logger.Error("broadcast driver status", "err", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{Snapshot: s.sim.Snapshot(), Driver: s.driver.Status()})
}

func (s *Server) handleStrains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, growth.Presets())
}

func (s *Server) handleStrain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	strain, ok := growth.LookupStrain(req.Key)
	if !ok && strings.EqualFold(strings.TrimSpace(req.Key), "custom") {
		strain, ok = growth.CustomStrain(), true
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown strain %q", req.Key))
		return
	}
	s.sim.SelectStrain(strain)
	s.logger.Info("strain selected", "strain", strain.Name)
	s.respondSnapshot(w)
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	var update growth.EnvironmentUpdate
	if err := decode(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.sim.UpdateEnvironment(update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleAntibiotic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On *bool `json:"on"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.On == nil {
		writeError(w, http.StatusBadRequest, errors.New("on is required"))
		return
	}
	s.sim.SetAntibiotic(*req.On)
	s.logger.Info("antibiotic toggled", "on", *req.On)
	s.respondSnapshot(w)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if s.driver.Status().State == platform.StateStopped {
		writeError(w, http.StatusConflict, errors.New("driver is stopped"))
		return
	}
	switch platform.Command(r.PathValue("command")) {
	case platform.CommandPause:
		s.driver.Pause()
	case platform.CommandResume:
		s.driver.Resume()
	case platform.CommandReset:
		s.driver.Reset()
	case platform.CommandStop:
		s.driver.Stop()
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown command %q", r.PathValue("command")))
		return
	}
	writeJSON(w, http.StatusAccepted, s.driver.Status())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvFileName))
	if err := s.sim.WriteCSV(w); err != nil {
		s.logger.Error("export csv", "err", err)
	}
}

// respondSnapshot answers with the new state and pushes it to clients, so
// changes made while paused are visible immediately.
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	snap := s.sim.Snapshot()
	s.PublishTick(snap, nil)
	writeJSON(w, http.StatusOK, snap)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
