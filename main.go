package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/gofrs/flock"

	"github.com/smazurov/scenecast/cmd"
	"github.com/smazurov/scenecast/internal/api"
	"github.com/smazurov/scenecast/internal/compositor"
	"github.com/smazurov/scenecast/internal/config"
	"github.com/smazurov/scenecast/internal/devices"
	"github.com/smazurov/scenecast/internal/events"
	"github.com/smazurov/scenecast/internal/executor"
	"github.com/smazurov/scenecast/internal/logging"
	"github.com/smazurov/scenecast/internal/metrics"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
	"github.com/smazurov/scenecast/internal/session"
	"github.com/smazurov/scenecast/internal/systemd"
	"github.com/smazurov/scenecast/internal/tally"
	"github.com/smazurov/scenecast/internal/version"
)

// Options for the CLI - flat structure with toml mapping. The stream
// profile lives in the [profile] table of the same file and is read by
// config.LoadProfile.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Scene settings
	ScenesFile string `help:"Scene collection file" default:"scenes.toml" toml:"scenes.file" env:"SCENES_FILE"`

	// Compositor settings
	PreviewFPS int `help:"Preview frame rate, 0 follows the encoder" default:"0" toml:"compositor.preview_fps" env:"COMPOSITOR_PREVIEW_FPS"`

	// Capture settings
	CapturePlatform string `help:"Capture platform override (linux, darwin, windows)" toml:"capture.platform" env:"CAPTURE_PLATFORM"`
	HotplugRescan   bool   `help:"Rescan devices on hotplug events" default:"true" toml:"capture.hotplug_rescan" env:"CAPTURE_HOTPLUG_RESCAN"`

	// Executor settings
	FFmpegBinary string `help:"ffmpeg binary" default:"ffmpeg" toml:"executor.ffmpeg" env:"EXECUTOR_FFMPEG"`
	DryRun       bool   `help:"Log pipelines instead of running ffmpeg" toml:"executor.dry_run" env:"EXECUTOR_DRY_RUN"`

	// Tally light settings
	TallyEnabled bool   `help:"Drive a board LED as an on-air tally" toml:"tally.enabled" env:"TALLY_ENABLED"`
	TallyLED     string `help:"LED name under /sys/class/leds, empty detects the board" toml:"tally.led" env:"TALLY_LED"`

	// Logging settings; per-module levels come from [logging.modules]
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")
		eventBus := events.New()

		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.NewLogEntryEvent(entry))
		})

		platform := pipeline.HostPlatform()
		if opts.CapturePlatform != "" {
			platform = pipeline.Platform(opts.CapturePlatform)
		}

		streamProfile, err := config.LoadProfile(opts.Config)
		if err != nil {
			logger.Error("Invalid stream profile", "config", opts.Config, "error", err)
			os.Exit(1)
		}

		scenesDoc, err := config.LoadScenes(opts.ScenesFile)
		if err != nil {
			logger.Error("Failed to load scenes", "file", opts.ScenesFile, "error", err)
			os.Exit(1)
		}
		model, err := config.BuildModel(scenesDoc, logging.GetLogger("scene"), scene.WithEventBus(eventBus))
		if err != nil {
			logger.Error("Failed to build scenes", "file", opts.ScenesFile, "error", err)
			os.Exit(1)
		}

		devLogger := logging.GetLogger("devices")
		acquirer := devices.NewFFmpegAcquirer(opts.FFmpegBinary, platform, devLogger)
		deviceManager := devices.NewManager(devices.NewEnumerator(), acquirer, devLogger, eventBus)

		screens := devices.NewScreenGrabber(opts.FFmpegBinary, platform, devLogger)
		comp := compositor.New(model, compositor.Options{Devices: deviceManager, Screens: screens}, logging.GetLogger("compositor"))
		applyCanvas := func(p profile.StreamProfile) {
			fps := p.Encoder.FPS
			if opts.PreviewFPS > 0 {
				fps = opts.PreviewFPS
			}
			comp.SetCanvas(p.Encoder.Resolution.Width, p.Encoder.Resolution.Height, fps)
		}
		applyCanvas(streamProfile)

		var exec session.Executor
		if opts.DryRun {
			logger.Warn("Dry run enabled, sessions will not start ffmpeg")
			exec = executor.NewDryRun(opts.FFmpegBinary, logging.GetLogger("executor"))
		} else {
			exec = executor.NewFFmpeg(opts.FFmpegBinary, logging.GetLogger("executor"))
		}
		controller := session.NewController(model, exec, streamProfile, logging.GetLogger("session"),
			session.WithEventBus(eventBus),
			session.WithPlatform(platform))

		profileWatcher := config.NewWatcher(opts.Config, config.LoadProfile, logging.GetLogger("config"),
			config.WithErrorHandler[profile.StreamProfile](func(err error) {
				logger.Warn("Ignoring invalid profile reload, keeping previous profile", "error", err)
			}))
		profileWatcher.OnReload(func(p profile.StreamProfile) {
			if err := controller.SetProfile(p); err != nil {
				logger.Warn("Failed to apply reloaded profile", "error", err)
				return
			}
			applyCanvas(p)
		})

		ctx, cancel := context.WithCancel(context.Background())
		hotplug := devices.NewHotplugMonitor(devLogger, eventBus, func() {
			if err := deviceManager.Rescan(ctx); err != nil {
				devLogger.Warn("Rescan after hotplug failed", "error", err)
			}
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Scenes:            model,
			ScenesFile:        opts.ScenesFile,
			Devices:           deviceManager,
			Session:           controller,
			Preview:           comp,
			EventBus:          eventBus,
			PrometheusHandler: metrics.HTTPHandler(),
		})

		var tallyManager *tally.Manager
		if opts.TallyEnabled {
			tallyLogger := logging.GetLogger("tally")
			tallyManager = tally.NewManager(tally.New(opts.TallyLED, tallyLogger), eventBus, tallyLogger)
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		lock := flock.New(opts.ScenesFile + ".lock")

		hooks.OnStart(func() {
			locked, lockErr := lock.TryLock()
			if lockErr != nil || !locked {
				logger.Error("Another scenecast instance is using this scenes file", "file", opts.ScenesFile, "error", lockErr)
				os.Exit(1)
			}

			logger.Info("Starting scenecast", "version", version.String(), "platform", platform, "profile", streamProfile)

			// Camera sources already visible bind as soon as the binder is attached.
			model.SetBinder(deviceManager)

			go func() {
				if runErr := comp.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					logger.Error("Compositor stopped", "error", runErr)
				}
			}()

			if startErr := profileWatcher.Start(); startErr != nil {
				logger.Warn("Failed to start profile watcher, hot-reload disabled", "error", startErr)
			}
			if tallyManager != nil {
				tallyManager.Start()
			}
			if opts.HotplugRescan {
				if startErr := hotplug.Start(ctx); startErr != nil {
					logger.Warn("Failed to start hotplug monitor", "error", startErr)
				}
			}

			notifier.Ready(eventBus)

			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Sessions stop before devices so ffmpeg never outlives its inputs.
			controller.Close()
			if tallyManager != nil {
				tallyManager.Stop()
			}
			hotplug.Stop()
			if stopErr := profileWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping profile watcher", "error", stopErr)
			}
			cancel()
			deviceManager.Close()
			acquirer.Close()
			screens.Close()

			if unlockErr := lock.Unlock(); unlockErr != nil {
				logger.Warn("Failed to release instance lock", "error", unlockErr)
			}
		})
	})

	cli.Root().Use = "scenecast"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreatePipelineCmd())

	cli.Run()
}
