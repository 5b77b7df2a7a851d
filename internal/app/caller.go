package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-apicaller/internal/config"
	"github.com/samvad-hq/samvad-apicaller/internal/history"
	"github.com/samvad-hq/samvad-apicaller/internal/logger"
	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
	"github.com/samvad-hq/samvad-apicaller/pkg/profiles"
	"github.com/samvad-hq/samvad-apicaller/pkg/publishers"
)

// Caller runs API requests for configured profiles. Every completed request is
// journaled to the history store and announced to the publisher fan-out.
type Caller struct {
	cfg      *config.Config
	profiles *profiles.Registry
	fanout   *publishers.Fanout
	store    history.Store
	log      logger.Logger
}

// Request is one call to run against a profile.
type Request struct {
	Method string
	Path   string
	Fields apiclient.Fields
}

// Reply carries what the client left behind after the call. Payloads are
// captured before the client is closed.
type Reply struct {
	Result   *apiclient.Result
	Response apiclient.Payload
	Error    apiclient.Payload
	Summary  string
	Elapsed  time.Duration
}

// NewCaller builds a caller runtime from config files.
func NewCaller(ctx context.Context, cfg *config.Config, log logger.Logger) (*Caller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	profileReg, err := profiles.LoadRegistry(cfg.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("load profiles registry: %w", err)
	}
	log.InfoObj("profiles registry loaded", "profiles_meta", map[string]any{
		"count": len(profileReg.All()),
		"ids":   profileReg.IDs(),
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storeOpts := history.Options{
		EntryTTL:        cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanupInterval,
	}
	store, err := history.NewStore(cfg.HistoryType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init history: %w", err)
	}
	log.InfoObj("history initialized", "history_config", map[string]any{
		"type":                     cfg.HistoryType,
		"path":                     cfg.BBoltPath,
		"entry_ttl_seconds":        int(cfg.HistoryTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.HistoryCleanupInterval.Seconds()),
	})

	return &Caller{
		cfg:      cfg,
		profiles: profileReg,
		fanout:   fanout,
		store:    store,
		log:      log,
	}, nil
}

// buildFanout loads the optional publishers file.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Profiles exposes the loaded profile registry.
func (c *Caller) Profiles() *profiles.Registry { return c.profiles }

// Client builds a client for the profile with the configured timeout and logger.
// The caller owns the returned client and must Close it.
func (c *Caller) Client(profileID string, opts ...apiclient.Option) (*apiclient.Client, profiles.Profile, error) {
	p, ok := c.profiles.ByID(profileID)
	if !ok {
		return nil, profiles.Profile{}, fmt.Errorf("unknown profile %q", profileID)
	}
	base := []apiclient.Option{
		apiclient.WithTimeout(c.cfg.RequestTimeout),
		apiclient.WithLogger(c.log),
	}
	client, err := p.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, p, err
	}
	return client, p, nil
}

// Call runs one request against the profile. The returned error is the
// client's error (*apiclient.HTTPError, *apiclient.TransportError, ...);
// journaling and publishing failures are logged, not returned.
func (c *Caller) Call(ctx context.Context, profileID string, req Request, opts ...apiclient.Option) (*Reply, error) {
	client, _, err := c.Client(profileID, opts...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	res, callErr := client.Do(ctx, method, req.Path, req.Fields)
	elapsed := time.Since(start)
	if res == nil {
		return nil, callErr
	}

	reply := &Reply{
		Result:   res,
		Response: client.LastResponse(true),
		Error:    client.LastError(true),
		Summary:  client.ErrorSummary(256),
		Elapsed:  elapsed,
	}

	var errMsg string
	if callErr != nil {
		errMsg = reply.Summary
	}
	c.record(ctx, publishers.NewEvent(profileID, method, client.BaseURL()+req.Path, res.StatusCode, res.Outcome.String(), elapsed, errMsg))
	return reply, callErr
}

// Recent lists journaled exchanges for the profile, newest first.
func (c *Caller) Recent(profileID string, limit int) ([]history.Entry, error) {
	return c.store.Recent(profileID, limit)
}

func (c *Caller) record(ctx context.Context, evt publishers.Event) {
	err := c.store.Record(history.Entry{
		ProfileID:  evt.ProfileID,
		Method:     evt.Method,
		URL:        evt.URL,
		Status:     evt.Status,
		Outcome:    evt.Outcome,
		DurationMs: evt.DurationMs,
		Error:      evt.Error,
		At:         evt.CompletedAt,
	})
	if err != nil {
		c.log.ErrorObj("history record failed", "error", err)
	}

	if c.fanout.Size() == 0 {
		return
	}
	delivered, err := c.fanout.Publish(ctx, evt)
	if err != nil {
		c.log.WarnObj("exchange event publish failed", "publish_result", map[string]any{
			"profile_id": evt.ProfileID,
			"delivered":  delivered,
			"error":      err.Error(),
		})
	}
}

// Close releases the history store and publishers.
func (c *Caller) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if err := c.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
