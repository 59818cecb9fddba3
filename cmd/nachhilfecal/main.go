package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"nachhilfecal/internal/config"
	"nachhilfecal/internal/engine"
	appLog "nachhilfecal/internal/log"
	"nachhilfecal/internal/web"
	"nachhilfecal/internal/webhook"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	appLog.Info("nachhilfecal starting", "version", "1.0.0")

	flags := parseFlags()

	// .env is optional; it typically carries NACHHILFE_API_URL so the
	// webhook secret stays out of the config file.
	if err := godotenv.Load(); err == nil {
		appLog.Debug("loaded environment from .env")
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// Missing data-source configuration blocks startup; it is not a runtime
	// error inside the engine.
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"api_base_url", "(set)",
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"calendar_ttl_seconds", conf.CalendarTTLSeconds,
		"roster_ttl_seconds", conf.RosterTTLSeconds,
		"upcoming_limit", conf.UpcomingLimit,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
		loc = time.Local
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	client := webhook.NewClient(conf.APIBaseURL, conf.APIToken,
		time.Duration(conf.FetchTimeoutSeconds)*time.Second)

	eng := engine.New(client, engine.Options{
		Location:      loc,
		CalendarTTL:   time.Duration(conf.CalendarTTLSeconds) * time.Second,
		RosterTTL:     time.Duration(conf.RosterTTLSeconds) * time.Second,
		UpcomingLimit: conf.UpcomingLimit,
	})

	// Scheduled cache warm so the first render after a quiet period does
	// not pay the fetch latency. The warm goes through the same cache path
	// as a normal read.
	if conf.RefreshCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(conf.RefreshCron, func() {
			warmCtx, warmCancel := context.WithTimeout(ctx, 2*time.Duration(conf.FetchTimeoutSeconds)*time.Second)
			defer warmCancel()
			eng.WarmCalendar(warmCtx)
		}); err != nil {
			appLog.Error("invalid refresh schedule; scheduled warm disabled", err, "refresh", conf.RefreshCron)
		} else {
			c.Start()
			defer c.Stop()
			appLog.Info("scheduled calendar warm enabled", "refresh", conf.RefreshCron)
		}
	}

	if err := web.StartServer(ctx, conf, eng); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("nachhilfecal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/nachhilfecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Log raw payload details at debug level")

	flag.Parse()

	return cfg
}
