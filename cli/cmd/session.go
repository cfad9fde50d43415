package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/tether/auth"
	"github.com/justapithecus/tether/cli/config"
	"github.com/justapithecus/tether/log"
	"github.com/justapithecus/tether/metrics"
	"github.com/justapithecus/tether/notify"
	redisadapter "github.com/justapithecus/tether/notify/redis"
	"github.com/justapithecus/tether/notify/webhook"
	"github.com/justapithecus/tether/record"
	"github.com/justapithecus/tether/runtime"
	"github.com/justapithecus/tether/term"
	"github.com/justapithecus/tether/types"
)

// defaultConfigFile is consulted when --config is not given.
const defaultConfigFile = "tether.yaml"

// session bundles everything a session-opening command needs: resolved
// configuration, identity, logging, and the runtime manager. One session
// per invocation.
type session struct {
	cfg       *config.Config
	meta      *types.SessionMeta
	logger    *log.Logger
	collector *metrics.Collector
	client    *runtime.APIClient
	manager   *runtime.Manager
	channel   term.ChannelConfig
	verbose   bool
	quiet     bool
}

// loadConfig reads the config file named by --config, or tether.yaml in
// the working directory when present. Absence of both is not an error;
// flags and environment can carry everything.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(ConfigFlag.Name)
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return &config.Config{}, nil
		}
		path = defaultConfigFile
	}
	return config.Load(path)
}

// resolveString prefers the flag value over the config value.
func resolveString(flag, fromConfig string) string {
	if flag != "" {
		return flag
	}
	return fromConfig
}

// newSession resolves flags against the config file and wires the
// acquisition stack. It performs no network calls.
func newSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	apiURL := resolveString(c.String(APIURLFlag.Name), cfg.APIURL)
	if apiURL == "" {
		return nil, fmt.Errorf("no API URL configured; set --api-url, TETHER_API_URL, or api_url in %s", defaultConfigFile)
	}

	variant, err := types.ParseVariant(resolveString(c.String(VariantFlag.Name), cfg.Variant))
	if err != nil {
		return nil, err
	}

	meta := &types.SessionMeta{
		SessionID: uuid.NewString(),
		Variant:   variant,
	}
	verbose := c.Bool(VerboseFlag.Name)
	logger := log.NewLogger(meta, verbose)
	collector := metrics.NewCollector(meta.SessionID, string(meta.Variant))

	var tokens auth.TokenSource
	if cfg.Token != "" {
		tokens, err = auth.NewStaticTokenSource(cfg.Token)
		if err != nil {
			return nil, err
		}
	} else {
		tokens = auth.NewEnvTokenSource(auth.EnvToken)
	}

	client := runtime.NewAPIClient(apiURL, tokens)
	manager, err := runtime.NewManager(runtime.ManagerConfig{
		Client:         client,
		Logger:         logger,
		Collector:      collector,
		PollInterval:   cfg.PollInterval.Duration,
		AcquireTimeout: cfg.AcquireTimeout.Duration,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:       cfg,
		meta:      meta,
		logger:    logger,
		collector: collector,
		client:    client,
		manager:   manager,
		channel: term.ChannelConfig{
			ClientAgent: runtime.ClientAgent,
			Logger:      logger,
			Collector:   collector,
		},
		verbose: verbose,
		quiet:   c.Bool(QuietFlag.Name),
	}, nil
}

// assignOptions builds acquisition options for this invocation.
func (s *session) assignOptions(c *cli.Context) runtime.AssignOptions {
	return runtime.AssignOptions{
		ForceNew: c.Bool(ForceNewFlag.Name) || s.cfg.ForceNew,
		Variant:  s.meta.Variant,
		Quiet:    s.quiet,
	}
}

// openRecording builds the configured recording sink for this session,
// or nil when recording is off. The --record flag enables the config
// file's backend; recording without configuration defaults to local
// files under the working directory.
func (s *session) openRecording(ctx context.Context, c *cli.Context) (record.Sink, error) {
	pathOverride := c.String(RecordPathFlag.Name)
	if !c.Bool(RecordFlag.Name) && !s.cfg.Recording.Enabled && pathOverride == "" {
		return nil, nil
	}
	rc := s.cfg.Recording
	path := resolveString(pathOverride, rc.Path)
	switch rc.Backend {
	case "", "fs":
		dir := path
		if dir == "" {
			dir = "recordings"
		}
		return record.NewFileSink(filepath.Join(dir, s.meta.SessionID+".rec"))
	case "s3":
		bucket, prefix := record.ParseS3Path(path)
		return record.NewS3Sink(ctx, record.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       rc.Region,
			Endpoint:     rc.Endpoint,
			UsePathStyle: rc.S3PathStyle,
		}, s.meta.SessionID)
	default:
		return nil, fmt.Errorf("unknown recording backend %q", rc.Backend)
	}
}

// tapConn wraps conn with a recorder when a sink is configured.
// Closing the returned connection also publishes the recording.
func (s *session) tapConn(conn term.Conn, sink record.Sink) term.Conn {
	if sink == nil {
		return conn
	}
	return record.NewTap(conn, record.NewRecorder(sink))
}

// buildAdapter constructs the configured notification adapter, or nil
// when none is configured.
func (s *session) buildAdapter() (notify.Adapter, error) {
	ac := s.cfg.Adapter
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		retries := redisadapter.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redisadapter.New(redisadapter.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.Type)
	}
}

// closeQuietly closes c and logs instead of failing; used for cleanup
// paths where the primary error already decides the outcome.
func (s *session) closeQuietly(c io.Closer, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		s.logger.Debug("close failed", map[string]any{"what": what, "error": err.Error()})
	}
}
