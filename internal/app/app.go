// Package app wires settings into the long-lived services shared by the CLI
// commands: logger, backend client, preference store, publishers and metrics.
package app

import (
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/spf13/viper"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/buildinfo"
	"github.com/tphakala/birdtarifa/internal/conf"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/notify"
	"github.com/tphakala/birdtarifa/internal/observability"
	"github.com/tphakala/birdtarifa/internal/prefs"
	"github.com/tphakala/birdtarifa/internal/render"
	"github.com/tphakala/birdtarifa/internal/sightings"
	"github.com/tphakala/birdtarifa/internal/telemetry"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// App holds the services for one CLI invocation. Fields are populated by
// Init and released by Close.
type App struct {
	Build    *buildinfo.Context
	Settings *conf.Settings
	Client   *api.Client
	Prefs    prefs.ClosableStore
	Metrics  *observability.Metrics
	Out      *render.Renderer

	stdout     io.Writer
	stderr     io.Writer
	root       logger.Logger
	log        logger.Logger
	publishers []notify.Publisher
	transport  http.RoundTripper

	closeOnce sync.Once
	closers   []func()
}

// Option customizes an App before Init.
type Option func(*App)

// WithOutput redirects rendered output and the spinner.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithTransport replaces the backend HTTP transport (tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(a *App) {
		a.transport = rt
	}
}

// New creates an uninitialized App.
func New(build *buildinfo.Context, opts ...Option) *App {
	a := &App{
		Build:  build,
		stdout: os.Stdout,
		stderr: os.Stderr,
		root:   logger.NewDiscard(),
		log:    logger.NewDiscard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Out = render.New(a.stdout)
	return a
}

// Init loads settings from v and builds every service. On failure the
// services built so far are released.
func (a *App) Init(v *viper.Viper) (err error) {
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	settings, err := conf.Load(v)
	if err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "load_settings").
			Build()
	}
	a.Settings = settings

	if err := a.initLogger(); err != nil {
		return err
	}
	if err := a.initTelemetry(); err != nil {
		return err
	}
	if err := a.initClient(); err != nil {
		return err
	}
	if err := a.initPrefs(); err != nil {
		return err
	}
	return a.initPublishers()
}

func (a *App) initLogger() error {
	central, err := logger.NewCentralLogger(&a.Settings.Logging)
	if err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_logger").
			Build()
	}
	a.root = central.Root()
	a.log = a.root.Module("app")
	a.closers = append(a.closers, func() { _ = central.Close() })
	return nil
}

func (a *App) initTelemetry() error {
	if !a.Settings.Telemetry.Enabled {
		return nil
	}
	flush, err := telemetry.Init(telemetry.Config{
		DSN:         a.Settings.Telemetry.DSN,
		Environment: a.Settings.Telemetry.Environment,
		Version:     a.Build.GetVersion(),
		Debug:       a.Settings.Debug,
	}, a.root)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, flush)
	return nil
}

func (a *App) initClient() error {
	userAgent := a.Settings.API.UserAgent
	if userAgent == "" {
		userAgent = a.Build.UserAgent()
	}

	client, err := api.New(api.Config{
		BaseURL:   a.Settings.API.BaseURL,
		Timeout:   a.Settings.API.Timeout,
		UserAgent: userAgent,
		RateLimit: a.Settings.API.RateLimit,
		Transport: a.transport,
	}, a.root)
	if err != nil {
		return err
	}
	a.Client = client
	a.closers = append(a.closers, client.Close)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_metrics").
			Build()
	}
	metrics.Instrument(client.HTTP())
	a.Metrics = metrics

	a.log.Debug("backend client ready",
		logger.String("base_url", client.BaseURL()),
		logger.String("user_agent", userAgent))
	return nil
}

func (a *App) initPrefs() error {
	store, err := prefs.Open(prefs.Config{
		Backend: a.Settings.Prefs.Backend,
		Path:    a.Settings.Prefs.Path,
	}, a.root)
	if err != nil {
		return err
	}
	a.Prefs = store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			a.log.Warn("failed to close preference store", logger.Error(err))
		}
	})
	return nil
}

func (a *App) initPublishers() error {
	n := a.Settings.Notify
	publishers, closeAll, err := notify.Setup(notify.Options{
		ShoutrrrEnabled: n.Shoutrrr.Enabled,
		Shoutrrr: notify.ShoutrrrConfig{
			URLs:    n.Shoutrrr.URLs,
			Title:   n.Shoutrrr.Title,
			Timeout: n.Shoutrrr.Timeout,
		},
		MQTTEnabled: n.MQTT.Enabled,
		MQTT: notify.MQTTConfig{
			Broker:   n.MQTT.Broker,
			Topic:    n.MQTT.Topic,
			ClientID: n.MQTT.ClientID,
			Username: n.MQTT.Username,
			Password: n.MQTT.Password,
			Retain:   n.MQTT.Retain,
			Timeout:  n.MQTT.Timeout,
		},
	}, a.root)
	if err != nil {
		return err
	}
	a.publishers = publishers
	a.closers = append(a.closers, closeAll)
	return nil
}

// Log returns the unscoped logger handed to workflows, which pick their own
// module names. Before Init it discards.
func (a *App) Log() logger.Logger {
	return a.root
}

// Publishers returns the enabled post-create publishers.
func (a *App) Publishers() []sightings.Publisher {
	out := make([]sightings.Publisher, 0, len(a.publishers))
	for _, p := range a.publishers {
		out = append(out, p)
	}
	return out
}

// Spinner returns a busy indicator on stderr. It draws nothing when stderr
// is not a terminal.
func (a *App) Spinner() *spinner.Spinner {
	if !isTerminal(a.stderr) {
		return spinner.NewSpinner(io.Discard)
	}
	return spinner.NewSpinner(a.stderr)
}

// Stdout is where commands write rendered output.
func (a *App) Stdout() io.Writer {
	return a.stdout
}

// Track records operation in the workflow metrics.
func (a *App) Track(operation string, fn func() error) error {
	if a.Metrics == nil {
		return fn()
	}
	return observability.Track(a.Metrics.Workflow, operation, fn)
}

// Finish prints the request summary when enabled. Call it after a command ran.
func (a *App) Finish() {
	if a.Settings == nil || !a.Settings.Metrics.Summary || a.Metrics == nil {
		return
	}
	summary, err := a.Metrics.Summary()
	if err != nil {
		a.log.Warn("failed to gather request metrics", logger.Error(err))
		return
	}
	a.Out.Metrics(summary)
}

// Close releases services in reverse order of creation.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
		a.closers = nil
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
