// Package api hosts the brokerdesk Model Context Protocol server. It
// registers resources, tools and prompts over the resolver, dispatcher and
// portfolio aggregator, and serves them over stdio or streamable HTTP. In
// HTTP mode a gRPC health endpoint runs alongside.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/config"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/portfolio"
	"brokerdesk/internal/resolver"
)

// Name and Version identify the server to protocol clients.
const (
	Name    = "brokerdesk"
	Version = "1.0.0"
)

// Server is the protocol server. It holds no state between requests beyond
// the per-session request lock.
type Server struct {
	cfg        *config.Config
	broker     broker.Broker
	mcp        *mcp.Server
	resolver   *resolver.Resolver
	dispatcher *engine.Dispatcher
	portfolio  *portfolio.Aggregator
	log        *slog.Logger

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer creates a Server configured from cfg and backed by b.
func NewServer(cfg *config.Config, b broker.Broker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		broker: b,
		resolver: resolver.New(b, resolver.Options{
			DefaultBarCount: cfg.Market.BarsDefaultCount,
			AssetsPageSize:  cfg.Market.AssetsPageSize,
		}, log),
		dispatcher: engine.NewDispatcher(b, log),
		portfolio:  portfolio.NewAggregator(b, log),
		log:        log.With("component", "api"),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, &mcp.ServerOptions{
		Instructions: "Brokerage account access: read account, positions, orders and market data " +
			"through resources; place, cancel and close orders through tools.",
	})
	s.mcp.AddReceivingMiddleware(newSessionLock().middleware)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// ListenAndServe serves the configured transport and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.Server.Transport == config.TransportHTTP {
		return s.serveHTTP(ctx)
	}
	s.log.Info("serving on stdio", "broker", s.broker.Name())
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler: the streamable protocol endpoint at /mcp
// and a JSON liveness probe at /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) serveHTTP(ctx context.Context) error {
	httpAddr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("protocol server listening", "addr", httpAddr, "broker", s.broker.Name())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.cfg.Server.GRPCPort > 0 {
		grpcAddr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.GRPCPort)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("grpc listen %s: %w", grpcAddr, err)
		}
		s.grpcServer, s.health = newGRPCServer()
		g.Go(func() error {
			s.log.Info("grpc health listening", "addr", grpcAddr)
			if err := s.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down protocol server")
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}
	return nil
}
