package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/xdbsoft/docstore"
	"github.com/xdbsoft/docstore/logging"
)

type options struct {
	Config string `short:"c" long:"config" description:"path to the configuration file (TOML, YAML or JSON)"`
	Addr   string `long:"addr" description:"address and port to listen on, overrides the configuration"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	var files []string
	if opts.Config != "" {
		files = append(files, opts.Config)
	}
	cfg, err := docstore.LoadConfig(files...)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	srv, err := docstore.New(cfg, logger.Named("docstore"))
	if err != nil {
		return err
	}

	s := &http.Server{
		Addr:           cfg.Addr,
		Handler:        srv.Handler(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("listening", "addr", cfg.Addr, "backend", cfg.Backend, "version", docstore.Version)
		if err := s.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	serveErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Close(closeCtx); err != nil {
		logger.Errorw("unable to flush databases", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
