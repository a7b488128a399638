package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"TenderMonitor/internal/app"
	"TenderMonitor/internal/config"
	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/logging"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before os.Exit.
func run() int {
	once := flag.Bool("once", false, "run a single refresh, print the result as JSON and exit")
	from := flag.String("from", "", "first day of the range (YYYY-MM-DD), defaults to today")
	to := flag.String("to", "", "last day of the range (YYYY-MM-DD), defaults to -from")
	includeExpired := flag.Bool("include-expired", false, "keep tenders whose close date has passed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return 1
	}
	defer application.Close()

	if !*once {
		if err := application.Run(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			return 1
		}
		return 0
	}

	req := domain.RefreshRequest{IncludeExpired: *includeExpired}
	if req.From, err = parseDay(*from, application.Location()); err != nil {
		logger.Error("invalid -from", "error", err)
		return 2
	}
	if req.To, err = parseDay(*to, application.Location()); err != nil {
		logger.Error("invalid -to", "error", err)
		return 2
	}

	if err := application.RunOnce(ctx, req, os.Stdout); err != nil {
		logger.Error("refresh failed", "error", err)
		return 1
	}
	return 0
}

func parseDay(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", raw, loc)
}
