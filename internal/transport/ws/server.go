// Package ws serves the simulation over HTTP and WebSocket. HTTP endpoints
// cover one-shot queries and control; the WebSocket carries the same commands
// plus pushed STATE frames while the simulation runs.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"floeworld/internal/protocol"
	"floeworld/internal/sim/world"
)

// MaxStepPerRequest bounds STEP batches at the serving layer so one request
// cannot stall the loop for long. The core itself has no upper bound.
const MaxStepPerRequest = 100

type Server struct {
	rt  *world.Runtime
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(rt *world.Runtime, logger *log.Logger) *Server {
	return &Server{
		rt:  rt,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Register installs all routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/animal", s.handleAnimal)
	mux.HandleFunc("/step", s.handleStep)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.rt.State(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAnimal(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "missing id")
		return
	}
	a, ok, err := s.rt.Animal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrInternal, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, "no such animal: "+id)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "POST required")
		return
	}
	n := 1
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "n must be an integer")
			return
		}
		n = v
	}
	if n <= 0 || n > MaxStepPerRequest {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest,
			"n must be in [1, "+strconv.Itoa(MaxStepPerRequest)+"]")
		return
	}
	st, err := s.rt.Step(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "POST required")
		return
	}
	st, err := s.rt.Reset(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrInternal, err.Error())
		return
	}
	s.log.Info("world reset", "tick", st.Tick)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.handleRun(w, r, true)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.handleRun(w, r, false)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, start bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "POST required")
		return
	}
	running, err := s.rt.SetRunning(r.Context(), start)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": running})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.rt.State(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrInternal, "loop unresponsive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan []byte, 16)
	if err := s.rt.Subscribe(ctx, out); err != nil {
		return
	}
	defer s.rt.Unsubscribe(out)

	// Writer goroutine. Push frames and command replies share one channel so
	// writes never interleave.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		s.dispatch(ctx, msg, out)
	}
}

func (s *Server) dispatch(ctx context.Context, msg []byte, out chan []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reply(out, protocol.NewErrorMsg(protocol.ErrProtoBadRequest, "malformed message"))
		return
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		s.reply(out, protocol.NewErrorMsg(protocol.ErrProtoBadRequest, "unsupported protocol_version"))
		return
	}

	switch base.Type {
	case protocol.TypePing:
		s.reply(out, protocol.BaseMessage{Type: protocol.TypePong})

	case protocol.TypeStep:
		var step protocol.StepMsg
		if err := json.Unmarshal(msg, &step); err != nil {
			s.reply(out, protocol.NewErrorMsg(protocol.ErrProtoBadRequest, "malformed STEP"))
			return
		}
		if step.N == 0 {
			step.N = 1
		}
		if step.N < 0 || step.N > MaxStepPerRequest {
			s.reply(out, protocol.NewErrorMsg(protocol.ErrBadRequest, "n out of range"))
			return
		}
		st, err := s.rt.Step(ctx, step.N)
		if err != nil {
			s.reply(out, protocol.NewErrorMsg(protocol.ErrBadRequest, err.Error()))
			return
		}
		s.reply(out, protocol.NewStateMsg(st))

	case protocol.TypeReset:
		st, err := s.rt.Reset(ctx)
		if err != nil {
			s.reply(out, protocol.NewErrorMsg(protocol.ErrInternal, err.Error()))
			return
		}
		s.reply(out, protocol.AckMsg{Type: protocol.TypeAck, Op: protocol.TypeReset, Tick: st.Tick})

	case protocol.TypeStart, protocol.TypeStop:
		if _, err := s.rt.SetRunning(ctx, base.Type == protocol.TypeStart); err != nil {
			s.reply(out, protocol.NewErrorMsg(protocol.ErrInternal, err.Error()))
			return
		}
		st, err := s.rt.State(ctx)
		if err != nil {
			s.reply(out, protocol.NewErrorMsg(protocol.ErrInternal, err.Error()))
			return
		}
		s.reply(out, protocol.AckMsg{Type: protocol.TypeAck, Op: base.Type, Tick: st.Tick})

	default:
		s.reply(out, protocol.NewErrorMsg(protocol.ErrProtoBadRequest, "unknown type "+base.Type))
	}
}

func (s *Server) reply(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		// Slow consumer; replies are droppable like push frames.
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, protocol.NewErrorMsg(code, msg))
}
