package cmd

import (
	"context"
	"fmt"
	"time"

	"golang-autotrader/internal/delivery/http"

	"go.uber.org/zap"
)

type HTTPServer struct {
	ctx     context.Context
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(ctx context.Context, appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		ctx:     ctx,
		appDep:  appDep,
		handler: handler,
	}
}

func (s *HTTPServer) Start() error {
	s.appDep.log.Info("Starting HTTP server", zap.Int("port", s.appDep.cfg.API.Port))
	address := fmt.Sprintf(":%d", s.appDep.cfg.API.Port)

	s.handler.SetupRoutes()

	return s.appDep.echo.Start(address)
}

func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")

	// s.ctx is already cancelled by the signal that triggered the shutdown.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Error("Error when stopping HTTP server", zap.Error(err))
		return err
	}
	s.appDep.log.Info("HTTP server stopped")
	return nil
}
