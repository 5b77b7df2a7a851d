package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samvad-hq/samvad-apicaller/internal/app"
	"github.com/samvad-hq/samvad-apicaller/internal/config"
	"github.com/samvad-hq/samvad-apicaller/internal/logger"
	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "apicall: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("apicall", pflag.ContinueOnError)
	flags.String("profile", "", "profile id to call")
	flags.String("profiles-file", "", "profiles YAML/JSON file")
	flags.String("publishers-file", "", "publishers YAML/JSON file")
	flags.String("history-type", "", "history backend (none, bbolt)")
	flags.String("log-level", "", "log level")
	method := flags.String("method", "GET", "HTTP method")
	path := flags.String("path", "/", "endpoint appended to the profile base URL")
	fieldArgs := flags.StringArray("field", nil, "request field as key=value (repeatable)")
	data := flags.String("data", "", "request fields as a JSON object")
	raw := flags.Bool("raw", false, "print the body as received instead of indenting JSON")
	recent := flags.Int("history", 0, "print the N most recent exchanges for the profile and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.Profile) == "" {
		return errors.New("--profile is required")
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caller, err := app.NewCaller(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize caller", "error", err)
		return err
	}
	defer caller.Close()

	if *recent > 0 {
		entries, err := caller.Recent(cfg.Profile, *recent)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	fields, err := parseFields(*data, *fieldArgs)
	if err != nil {
		return err
	}

	reply, callErr := caller.Call(ctx, cfg.Profile, app.Request{
		Method: *method,
		Path:   *path,
		Fields: fields,
	})
	if reply == nil {
		return callErr
	}

	body := reply.Response
	if callErr != nil {
		body = reply.Error
	}
	if len(body.Raw) > 0 {
		if err := printBody(stdout, body, *raw); err != nil {
			return err
		}
	}
	if callErr != nil {
		return callErr
	}
	if reply.Result.Outcome == apiclient.OutcomeEmpty {
		fmt.Fprintf(os.Stderr, "apicall: status %d with empty body\n", reply.Result.StatusCode)
	}
	return nil
}

// parseFields merges --data and --field values; --field wins on conflicts.
func parseFields(data string, pairs []string) (apiclient.Fields, error) {
	if strings.TrimSpace(data) == "" && len(pairs) == 0 {
		return nil, nil
	}
	fields := apiclient.Fields{}
	if strings.TrimSpace(data) != "" {
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q (expected key=value)", pair)
		}
		fields[key] = value
	}
	return fields, nil
}

func printBody(w io.Writer, p apiclient.Payload, raw bool) error {
	if !raw && p.State == apiclient.PayloadPresent {
		var v any
		if err := p.Decode(&v); err == nil {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}
	}
	_, err := fmt.Fprintln(w, p.String())
	return err
}
