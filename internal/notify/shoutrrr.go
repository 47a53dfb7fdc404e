package notify

import (
	"context"
	"io"
	stdlog "log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// ShoutrrrConfig configures chat notifications.
type ShoutrrrConfig struct {
	URLs    []string
	Title   string
	Timeout time.Duration
}

type messageSender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrPublisher sends a message per created sighting to every
// configured shoutrrr URL.
type ShoutrrrPublisher struct {
	sender messageSender
	title  string
	log    logger.Logger
}

// NewShoutrrrPublisher validates the URLs and builds one sender for all.
func NewShoutrrrPublisher(cfg ShoutrrrConfig, log logger.Logger) (*ShoutrrrPublisher, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("at least one shoutrrr URL is required").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	router, err := shoutrrr.CreateSender(slices.Clone(cfg.URLs)...)
	if err != nil {
		// URLs carry tokens; keep them out of the message.
		return nil, errors.Newf("invalid shoutrrr URL configuration").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(cfg.URLs)).
			Build()
	}
	if cfg.Timeout > 0 {
		router.Timeout = cfg.Timeout
	}
	router.SetLogger(stdlog.New(io.Discard, "", 0))

	return newShoutrrrPublisher(router, cfg.Title, log), nil
}

func newShoutrrrPublisher(sender messageSender, title string, log logger.Logger) *ShoutrrrPublisher {
	if title == "" {
		title = DefaultTitle
	}
	return &ShoutrrrPublisher{
		sender: sender,
		title:  title,
		log:    logger.OrDiscard(log).Module("notify").Module("shoutrrr"),
	}
}

// Name implements sightings.Publisher.
func (p *ShoutrrrPublisher) Name() string { return "shoutrrr" }

// Publish sends the formatted sighting. The router applies its own timeout.
func (p *ShoutrrrPublisher) Publish(ctx context.Context, s *api.Sighting) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	params.SetTitle(p.title)

	var failed []error
	for _, e := range p.sender.Send(FormatMessage(s), &params) {
		if e != nil {
			failed = append(failed, e)
		}
	}
	if len(failed) > 0 {
		p.log.Warn("Notification delivery failed",
			logger.Int64("sighting_id", s.ID),
			logger.Int("failed", len(failed)))
		return errors.New(errors.Join(failed...)).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("provider", "shoutrrr").
			Context("failed", len(failed)).
			Build()
	}

	p.log.Debug("Notification sent", logger.Int64("sighting_id", s.ID))
	return nil
}
