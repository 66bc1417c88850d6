package hostapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// Backend answers the handful of questions a stage program can ask the
// engine during a single invocation. The engine provides one Backend
// per invocation, scoped to that stage's resolved inputs and build tree.
type Backend interface {
	Arguments() ArgumentsResponse
	Mkdtemp(prefix string) (string, error)
	SourcePath(sourceType, hash string) (string, error)
	RecordMetadata(key string, value json.RawMessage)
	Log(level, message string)
	Exception(message, trace string)
}

// Server is a single stage invocation's Host API listener. Exactly one
// connection is expected (the stage program); subsequent connections
// are accepted but share the same Backend, since a stage program may
// reconnect after a crash of its own IPC client.
type Server struct {
	socketPath string
	backend    Backend
	listener   net.Listener

	mu   sync.Mutex
	done chan struct{}
}

// New creates a Host API server that will listen at socketPath once
// Start is called.
func New(socketPath string, backend Backend) *Server {
	return &Server{
		socketPath: socketPath,
		backend:    backend,
		done:       make(chan struct{}),
	}
}

// Start opens the Unix socket and begins accepting connections in the
// background.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errs.Wrapf(ErrProtocol, "listening on %s: %w", s.socketPath, err)
	}
	s.listener = l

	go s.accept()
	return nil
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Warn("host api accept error", "error", err)
				return
			}
		}
		go s.handleConn(conn)
	}
}

// handleConn services every message on one connection until it closes,
// unlike the teacher's one-exchange-per-connection protocol, since a
// stage program keeps its host API connection open for its whole run.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		env, err := readFrame(conn)
		if err != nil {
			return
		}
		s.dispatch(conn, env)
	}
}

func (s *Server) dispatch(conn net.Conn, env Envelope) {
	switch env.Kind {
	case KindArguments:
		s.respond(conn, env.Kind, s.backend.Arguments())

	case KindMkdtemp:
		var req MkdtempRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		path, err := s.backend.Mkdtemp(req.Prefix)
		if err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		s.respond(conn, env.Kind, MkdtempResponse{Path: path})

	case KindSource:
		var req SourceRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		path, err := s.backend.SourcePath(req.SourceType, req.Hash)
		if err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		s.respond(conn, env.Kind, SourceResponse{Path: path})

	case KindMetadata:
		var req MetadataRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		s.backend.RecordMetadata(req.Key, req.Value)
		s.respond(conn, env.Kind, struct{}{})

	case KindLog:
		var req LogRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		s.backend.Log(req.Level, req.Message)
		s.respond(conn, env.Kind, struct{}{})

	case KindException:
		var req ExceptionRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.respondError(conn, env.Kind, err)
			return
		}
		s.backend.Exception(req.Message, req.Trace)
		s.respond(conn, env.Kind, struct{}{})

	default:
		s.respondError(conn, env.Kind, ErrUnknownKind)
	}
}

func (s *Server) respond(conn net.Conn, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("host api: marshaling response failed", "kind", kind, "error", err)
		return
	}
	if err := writeFrame(conn, Envelope{Kind: kind, Payload: data}); err != nil {
		slog.Warn("host api: writing response failed", "kind", kind, "error", err)
	}
}

func (s *Server) respondError(conn net.Conn, kind string, err error) {
	data, _ := json.Marshal(ErrorResponse{Message: err.Error()})
	writeFrame(conn, Envelope{Kind: kind + ".error", Payload: data})
}
