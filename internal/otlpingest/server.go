package otlpingest

import (
	"log"
	"net"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/grpc"
)

// Server hosts the OTLP gRPC receiver. Default addr is "127.0.0.1:4317",
// the conventional OTLP/gRPC port.
type Server struct {
	addr     string
	listener net.Listener
	grpc     *grpc.Server
}

// NewServer wires a receiver for the given sink into a gRPC server.
func NewServer(addr string, points PointSink) *Server {
	if addr == "" {
		addr = "127.0.0.1:4317"
	}
	srv := grpc.NewServer()
	colmetricspb.RegisterMetricsServiceServer(srv, NewReceiver(points))
	return &Server{addr: addr, grpc: srv}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	go func() {
		if err := s.grpc.Serve(listener); err != nil {
			log.Printf("otlpingest: serve: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight exports and shuts the server down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
