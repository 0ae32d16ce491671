package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"printlapse/internal/daemon"
	"printlapse/internal/logging"
)

const serviceName = "Printlapse"

// Backend is the daemon surface the server exposes.
type Backend interface {
	Status(ctx context.Context) daemon.Status
	TestNotification(ctx context.Context) (bool, string, error)
}

// Server exposes daemon status via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{backend: backend, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until Close is called.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server, drops open client connections, and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse status commands"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

type service struct {
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.backend.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.LockPath = status.LockFilePath
	resp.LogPath = status.LogPath
	resp.FramesDir = status.FramesDir
	resp.OutputDir = status.OutputDir
	resp.NotificationsConfigured = status.NotificationsConfigured
	resp.Monitor = status.Monitor
	if len(status.Dependencies) > 0 {
		resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
		for _, dep := range status.Dependencies {
			resp.Dependencies = append(resp.Dependencies, DependencyStatus{
				Name:        dep.Name,
				Command:     dep.Command,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Path:        dep.Path,
				Detail:      dep.Detail,
			})
		}
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	s.logger.Debug("test notification requested")
	sent, message, err := s.backend.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
