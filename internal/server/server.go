package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server binds the host's HTTP and signaling surface to a LAN-reachable port.
// The preferred port is tried first, then the next searchSpan ports, then
// whatever the OS hands out.
type Server struct {
	preferred  int
	searchSpan int
	logger     *zap.Logger

	mu   sync.Mutex
	srv  *http.Server
	port int
	done chan struct{}
}

func New(preferredPort, searchSpan int, logger *zap.Logger) *Server {
	return &Server{
		preferred:  preferredPort,
		searchSpan: searchSpan,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start begins serving handler and returns the bound port. Calling it again
// returns the same port without binding twice. The server shuts down when
// ctx ends.
func (s *Server) Start(ctx context.Context, handler http.Handler) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return s.port, nil
	}

	ln, err := s.listen()
	if err != nil {
		return 0, err
	}

	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.port = ln.Addr().(*net.TCPAddr).Port

	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()
	go s.shutdownOnDone(ctx, srv)

	s.logger.Info("server started", zap.Int("port", s.port), zap.String("url", s.localURLLocked()))
	return s.port, nil
}

// Done is closed once the server has shut down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// LocalURL is the address other devices on the LAN use to reach this host.
func (s *Server) LocalURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localURLLocked()
}

func (s *Server) localURLLocked() string {
	return fmt.Sprintf("http://%s:%d", lanIP(), s.port)
}

func (s *Server) listen() (net.Listener, error) {
	if s.preferred > 0 {
		for port := s.preferred; port <= s.preferred+s.searchSpan && port <= 65535; port++ {
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if err == nil {
				return ln, nil
			}
			s.logger.Debug("port unavailable", zap.Int("port", port), zap.Error(err))
		}
		s.logger.Warn("no free port near preferred, using an OS-assigned port",
			zap.Int("preferred", s.preferred),
			zap.Int("span", s.searchSpan))
	}

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind server port: %w", err)
	}
	return ln, nil
}

func (s *Server) shutdownOnDone(ctx context.Context, srv *http.Server) {
	defer close(s.done)
	<-ctx.Done()

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
	}
}

// lanIP returns the first private IPv4 address of this machine, falling back
// to any non-loopback IPv4 address and finally localhost.
func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}

	var fallback string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil {
			continue
		}
		if ip.IsPrivate() {
			return ip.String()
		}
		if fallback == "" {
			fallback = ip.String()
		}
	}
	if fallback != "" {
		return fallback
	}
	return "localhost"
}
