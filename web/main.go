package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"autolog.dev/autolog/approval"
	"autolog.dev/autolog/config"
	"autolog.dev/autolog/core"
	"autolog.dev/autolog/infrastructure/communication"
	"autolog.dev/autolog/infrastructure/devops"
	"autolog.dev/autolog/infrastructure/email"
	"autolog.dev/autolog/infrastructure/filesystem"
	"autolog.dev/autolog/logger"
	"autolog.dev/autolog/pdf"
	"autolog.dev/autolog/security"
	"autolog.dev/autolog/web/handlers/pages"
	"autolog.dev/autolog/web/handlers/timesheet"
	"autolog.dev/autolog/web/middlewares"
)

const maxConnections = 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "autolog: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var params config.ParameterSource
	if os.Getenv("CONFIG_SSM_PARAMETER") != "" {
		loader, err := devops.NewParameterLoader(ctx)
		if err != nil {
			return err
		}
		params = loader
	}

	cfg, err := config.FromEnv(ctx, params)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFormat != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	dm, err := core.New(ctx, cfg.MongoURI, cfg.MongoDatabase, maxConnections)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dm.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("failed to disconnect from database")
		}
	}()
	records := dm.Collection(cfg.MongoCollection)
	demo := dm.Collection(cfg.MongoDemoCollection)

	mailer, err := newMailer(ctx, cfg)
	if err != nil {
		return err
	}
	tokens := security.NewTokenService(cfg.SignedTokenSecret)
	from := email.NoReplySender(cfg.MailgunDomain)
	notifier := communication.Connect(cfg.SlackBotToken, communication.SlackOption{
		InfoChannelID:  cfg.SlackInfoChannel,
		ErrorChannelID: cfg.SlackErrorChannel,
	})

	workflow := approval.NewWorkflow(approval.Options{
		Store:    records,
		Tokens:   tokens,
		Mailer:   mailer,
		Notifier: notifier,
		SiteURL:  cfg.SiteURL,
		From:     from,
		Logger:   log,
	})
	links := approval.NewLinkSender(tokens, email.NewMailgunHTTP(cfg.MailgunAPIBase, cfg.MailgunDomain, cfg.MailgunAPIKey), cfg.SiteURL, from)

	browser := pdf.NewBrowser(cfg.ChromePath, cfg.PDFRenderTimeout, log)
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close browser")
		}
	}()

	cache := pdf.NewCache(cfg.PDFCacheTTL)
	go cache.RunSweeper(ctx, cfg.PDFSweepInterval, func(removed int) {
		if removed > 0 {
			log.Debug().Int("removed", removed).Msg("pdf cache swept")
		}
	})

	serviceOpts := pdf.ServiceOptions{
		Renderer:   browser,
		Compressor: pdf.PdfcpuCompressor{},
		Cache:      cache,
		BaseURL:    cfg.RenderBaseURL,
		Logger:     log,
	}
	if cfg.PDFArchiveBucket != "" {
		archive, err := filesystem.NewS3FileSystem(ctx, cfg.PDFArchiveBucket)
		if err != nil {
			return err
		}
		serviceOpts.Archiver = archive
	}

	requestLimit := middlewares.NewRateLimiter(50, 15*time.Minute, "Too many requests from this IP, please try again after 15 minutes")
	approveLimit := middlewares.NewRateLimiter(50, time.Hour, "Too many approval requests from this IP, please try again after an hour")
	pdfLimit := middlewares.NewRateLimiter(30, time.Hour, "PDF generation limit reached, please try again after an hour")
	for _, rl := range []*middlewares.RateLimiter{requestLimit, approveLimit, pdfLimit} {
		go rl.Cleanup(ctx)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), middlewares.Logger(log))
	r.Static("/assets", cfg.StaticDir)

	timesheet.Register(r.Group("/api"), timesheet.Options{
		Store:        records,
		Workflow:     workflow,
		Links:        links,
		PDF:          pdf.NewService(serviceOpts),
		ExpireAfter:  cfg.ExpireTime,
		BearerKey:    cfg.APIRouteBearerKey,
		Logger:       log,
		RequestLimit: requestLimit.Middleware(),
		ApproveLimit: approveLimit.Middleware(),
		PDFLimit:     pdfLimit.Middleware(),
	})
	if err := pages.Register(r, pages.Options{
		Records:  records,
		Demo:     demo,
		Versions: pages.NewReleaseChecker(pages.ReleasesURL, time.Hour),
		Logger:   log,
	}); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	return serve(ctx, r, cfg, log)
}

func newMailer(ctx context.Context, cfg *config.Config) (email.Mailer, error) {
	switch cfg.EmailProvider {
	case "ses":
		sender := cfg.SESSender
		if sender == "" {
			sender = email.NoReplySender(cfg.MailgunDomain)
		}
		return email.NewSESMailer(ctx, sender)
	default:
		return email.NewMailgunMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase), nil
	}
}

func serve(ctx context.Context, handler http.Handler, cfg *config.Config, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// a cold PDF render can take up to the render timeout
		WriteTimeout: cfg.PDFRenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
