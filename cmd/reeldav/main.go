package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/reeldav/reeldav/internal/config"
	"github.com/reeldav/reeldav/internal/logger"
	"github.com/reeldav/reeldav/pkg/metadata"
	"github.com/reeldav/reeldav/pkg/server"
	"github.com/reeldav/reeldav/pkg/upstream"
	"github.com/reeldav/reeldav/pkg/version"
	"github.com/reeldav/reeldav/pkg/vfs"
	"github.com/reeldav/reeldav/pkg/webdav"
)

func main() {
	var (
		host    string
		port    string
		verbose bool
	)
	flag.StringVar(&host, "host", "", "bind address (overrides HOST)")
	flag.StringVar(&port, "port", "", "listen port (overrides PORT)")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&verbose, "v", false, "enable debug logging (shorthand)")
	flag.Parse()

	cfg := config.Get()
	if host != "" {
		cfg.BindAddress = host
	}
	if port != "" {
		cfg.Port = port
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "reeldav:", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.LogLevel)
	_log := logger.Default()
	_log.Info().Msg(version.GetInfo().String())

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	client := upstream.New(cfg.UpstreamURL, cfg.Username, cfg.Password, cfg.CacheTTL)
	resolver := metadata.NewResolver(cfg.OMDBAPIKey, cfg.TMDBAPIKey)
	tree := vfs.New(client, resolver, cfg.AllowedExtensions(), cfg.CacheTTL)
	dav := webdav.NewHandler(tree, client)
	srv := server.New(dav, tree)

	var wg sync.WaitGroup
	errChan := make(chan error)

	safeGo := func(f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					_log.Error().
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Msg("Recovered from panic in goroutine")
					errChan <- fmt.Errorf("panic: %v", r)
				}
			}()
			if err := f(); err != nil {
				errChan <- err
			}
		}()
	}

	safeGo(func() error {
		return tree.Start(ctx, cfg.RefreshInterval)
	})
	safeGo(func() error {
		return srv.Start(ctx)
	})

	go func() {
		wg.Wait()
		close(errChan)
	}()

	exitCode := 0
	for err := range errChan {
		if err != nil {
			_log.Error().Err(err).Msg("Service error detected")
			exitCode = 1
			cancel()
		}
	}
	os.Exit(exitCode)
}
