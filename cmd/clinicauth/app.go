package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"

	clinicAuth "github.com/MrEthical07/clinicAuth"
	promexport "github.com/MrEthical07/clinicAuth/metrics/export/prometheus"
)

const appName = "clinicauth"

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      appName,
		Usage:     "Sign in to the clinic API with a one-time code",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", EnvVars: []string{"CLINICAUTH_BASE_URL"}, Usage: "clinic API base URL"},
			&cli.BoolFlag{Name: "mock", Usage: "serve a seeded in-process clinic API instead of --base-url"},
			&cli.StringFlag{Name: "state-dir", EnvVars: []string{"CLINICAUTH_STATE_DIR"}, Usage: "directory holding the session file"},
			&cli.StringFlag{Name: "seal-secret", EnvVars: []string{"CLINICAUTH_SEAL_SECRET"}, Usage: "encrypt the session file with this secret"},
			&cli.StringFlag{Name: "sqlite", Usage: "keep the session in this SQLite file"},
			&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"CLINICAUTH_REDIS_ADDR"}, Usage: "keep the session in Redis"},
			&cli.DurationFlag{Name: "timeout", Value: 15 * time.Second, Usage: "per-request timeout"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable coloured logs"},
			&cli.BoolFlag{Name: "audit", Usage: "write audit events to stderr as JSON lines"},
			&cli.BoolFlag{Name: "print-metrics", Usage: "print client metrics after the command"},
		},
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			whoamiCommand(),
			logoutCommand(),
			clinicsCommand(),
		},
	}
}

// runtime is the per-invocation client plus whatever backs it.
type runtime struct {
	client  *clinicAuth.Client
	mock    *mockBackend
	logger  *slog.Logger
	in      *bufio.Reader
	out     io.Writer
	closers []func() error
	metrics bool
}

func openRuntime(c *cli.Context) (*runtime, error) {
	stderr := c.App.ErrWriter
	logger := newLogger(stderr, c.String("log-level"), c.Bool("no-color"))
	rt := &runtime{
		logger:  logger,
		in:      bufio.NewReader(c.App.Reader),
		out:     c.App.Writer,
		metrics: c.Bool("print-metrics"),
	}

	baseURL := c.String("base-url")
	if c.Bool("mock") {
		m, err := startMock(logger)
		if err != nil {
			return nil, fmt.Errorf("start mock: %w", err)
		}
		rt.mock = m
		rt.closers = append(rt.closers, m.Close)
		baseURL = m.url
	}
	if baseURL == "" {
		rt.close()
		return nil, errors.New("set --base-url or --mock")
	}

	cfg := clinicAuth.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.RequestTimeout = c.Duration("timeout")
	cfg.Audit.Enabled = c.Bool("audit")
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = rt.metrics
	cfg.Metrics.EnableLatencyHistograms = rt.metrics

	persister, closeStore, err := openPersister(c.Context, storageOptions{
		name:       cfg.Session.StorageName,
		stateDir:   c.String("state-dir"),
		sqlitePath: c.String("sqlite"),
		redisAddr:  c.String("redis-addr"),
		sealSecret: c.String("seal-secret"),
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	b := clinicAuth.New().
		WithConfig(cfg).
		WithPersister(persister).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(clinicAuth.NewJSONWriterSink(stderr))
	}
	client, err := b.Build()
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.client = client

	return rt, nil
}

func (rt *runtime) close() {
	if rt.client != nil {
		if rt.metrics {
			if err := printMetrics(rt.out, rt.client); err != nil {
				rt.logger.Warn("print metrics failed", slog.Any("error", err))
			}
		}
		if err := rt.client.Close(); err != nil {
			rt.logger.Warn("session not saved", slog.Any("error", err))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
}

// withRuntime runs fn against a freshly built client and always releases it.
func withRuntime(fn func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := openRuntime(c)
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(c, rt)
	}
}

func printMetrics(w io.Writer, client *clinicAuth.Client) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(promexport.NewPrometheusExporter(client)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (rt *runtime) prompt(label string) (string, error) {
	fmt.Fprint(rt.out, label)
	line, err := rt.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// announceCode prints the code the mock backend just sent, since there is no
// real inbox behind it.
func (rt *runtime) announceCode() {
	if rt.mock == nil {
		return
	}
	if d, ok := rt.mock.lastCode(); ok {
		fmt.Fprintf(rt.out, "[mock] code %s sent via %s\n", d.Code, d.Channel)
	}
}

const maxCodeAttempts = 3

// enterCode verifies the flag code, or prompts until a code is accepted.
func (rt *runtime) enterCode(ctx context.Context, v *clinicAuth.Verification, code string) error {
	rt.announceCode()
	if code != "" {
		return v.SubmitCode(ctx, code)
	}

	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		ch := v.Snapshot().Channel
		code, err = rt.prompt(fmt.Sprintf("Code sent via %s: ", ch))
		if err != nil {
			return err
		}
		err = v.SubmitCode(ctx, code)
		if err == nil || !(errors.Is(err, clinicAuth.ErrCodeRejected) || errors.Is(err, clinicAuth.ErrValidation)) {
			return err
		}
		fmt.Fprintln(rt.out, "That code was not accepted.")
	}
	return err
}

func (rt *runtime) reportSignedIn() {
	sess, ok := rt.client.Session()
	if !ok {
		return
	}
	name := sess.DisplayName
	if name == "" {
		name = sess.SubjectID
	}
	fmt.Fprintf(rt.out, "Signed in as %s (%s). Next: %s\n", name, sess.Role, rt.client.Destination())
}

func parseRole(s string) (clinicAuth.Role, error) {
	role := clinicAuth.Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

func parseChannel(s string) (clinicAuth.Channel, error) {
	ch := clinicAuth.Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return ch, nil
}
