package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/config"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/storage"
)

type runParams struct {
	configPath string
	sessionID  string
	userID     string
	stream     bool
	showEvents bool
	args       []string
}

// loadConfig reads the configuration file. A missing file at the default
// location yields the default configuration.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigName {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func runAgent(cmd *cobra.Command, p runParams) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return err
	}
	input, err := readInput(cmd.InOrStdin(), p.args)
	if err != nil {
		return err
	}

	logger := cfg.Logger(cmd.ErrOrStderr())
	st, closeStorage, err := cfg.OpenStorage(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Warn("storage.close.failed", "error", err)
		}
	}()

	tracer, shutdown, err := cfg.Tracer(version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("tracer.shutdown.failed", "error", err)
		}
	}()

	a, err := cfg.NewAgent(config.Deps{
		Storage: st,
		Logger:  logger,
		Metrics: cfg.Metrics(prometheus.DefaultRegisterer),
		Tracer:  tracer,
	}, func(o *agent.Options) {
		o.SessionID = p.sessionID
		o.UserID = p.userID
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !p.stream && !p.showEvents {
		run, err := a.Run(ctx, input)
		if err != nil {
			return err
		}
		if err := printContent(out, run.Content); err != nil {
			return err
		}
	} else if err := streamRun(ctx, a, input, out, cmd.ErrOrStderr(), p); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", a.SessionID())
	return nil
}

func streamRun(ctx context.Context, a *agent.Agent, input string, out, errOut io.Writer, p runParams) error {
	events, errs := a.RunStream(ctx, input)
	var runErr error
	for ev := range events {
		switch ev.Type {
		case core.EventRunResponse:
			if ev.IsError() {
				runErr = errors.New(ev.Text())
				continue
			}
			if p.stream {
				fmt.Fprint(out, ev.Text())
			}
		case core.EventRunCompleted:
			if p.stream {
				fmt.Fprintln(out)
			} else if err := printContent(out, ev.Content); err != nil {
				return err
			}
		}
		if p.showEvents && ev.Type != core.EventRunResponse {
			fmt.Fprintf(errOut, "[%s] %s\n", ev.Type, summarize(ev))
		}
	}
	if err := <-errs; err != nil {
		return err
	}
	return runErr
}

func summarize(ev core.Event) string {
	if text := ev.Text(); text != "" && ev.Type != core.EventRunCompleted {
		return text
	}
	var names []string
	for _, tc := range ev.Tools {
		names = append(names, tc.Function.Name)
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return ev.RunID
}

func readInput(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", errors.New("no input: pass it as arguments or on stdin")
	}
	return input, nil
}

func printContent(out io.Writer, content any) error {
	if s, ok := content.(string); ok {
		_, err := fmt.Fprintln(out, s)
		return err
	}
	return writeJSON(out, content)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withStorage(cmd *cobra.Command, configPath string, fn func(ctx context.Context, st storage.Storage) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, closeStorage, err := cfg.OpenStorage(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = closeStorage() }()
	return fn(ctx, st)
}

func runSessionsList(cmd *cobra.Command, configPath, userID string) error {
	return withStorage(cmd, configPath, func(ctx context.Context, st storage.Storage) error {
		sessions, err := st.List(ctx, userID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tUSER\tRUNS\tUPDATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.SessionID, s.UserID, len(s.Memory.Runs), s.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	})
}

func runSessionsShow(cmd *cobra.Command, configPath, sessionID string) error {
	return withStorage(cmd, configPath, func(ctx context.Context, st storage.Storage) error {
		sess, err := st.Read(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return writeJSON(cmd.OutOrStdout(), sess)
	})
}

func runSessionsDelete(cmd *cobra.Command, configPath, sessionID string) error {
	return withStorage(cmd, configPath, func(ctx context.Context, st storage.Storage) error {
		if err := st.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session %s: %w", sessionID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", sessionID)
		return nil
	})
}

func runConfigSchema(cmd *cobra.Command) error {
	raw, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return err
}

func runConfigValidate(cmd *cobra.Command, configPath string) error {
	if _, err := config.Load(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", configPath)
	return nil
}
