// Command facadectl runs one façade operation from the command line, with
// credentials and the audit sink taken from the environment (and .env).
//
//	facadectl [-env file] <command> [args...]
//
// Commands:
//
//	s3-put <key> <file> [override]   s3-get <key|url>      s3-exists <key>
//	s3-delete <key|url>              s3-sign <key> [ttl]   s3-refresh <url>
//	sqs-send <body>                  sqs-receive [max]     sqs-delete <receipt-handle>
//	ses-send <to> <subject> <body>   keygen                seal <secret>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"aws_facade/internal/config"
	"aws_facade/internal/mailer"
	"aws_facade/internal/messaging"
	"aws_facade/internal/storage"
	"aws_facade/internal/utils"
)

var errUsage = errors.New("usage")

type command struct {
	args int
	run  func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{
	"s3-put": {2, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		content, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		override := len(args) > 2 && args[2] == "override"
		uri, err := a.storage.Put(ctx, content, args[0], storage.PutOptions{Override: override})
		return emit(out, uri, err)
	}},
	"s3-get": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		var body []byte
		var err error
		if isURL(args[0]) {
			body, err = a.storage.GetByURL(ctx, args[0])
		} else {
			body, err = a.storage.Get(ctx, args[0], storage.ObjectOptions{})
		}
		if body != nil {
			if _, werr := out.Write(body); werr != nil {
				return werr
			}
		}
		return err
	}},
	"s3-exists": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		ok, err := a.storage.Exists(ctx, args[0], storage.ObjectOptions{})
		return emit(out, ok, err)
	}},
	"s3-delete": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		if isURL(args[0]) {
			ok, err := a.storage.DeleteByURL(ctx, args[0])
			return emit(out, ok, err)
		}
		ok, err := a.storage.Delete(ctx, args[0], storage.DeleteOptions{CheckExists: true})
		return emit(out, ok, err)
	}},
	"s3-sign": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		opts := storage.SignOptions{}
		if len(args) > 1 {
			ttl, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid ttl: %w", err)
			}
			opts.TTL = ttl
		}
		uri, err := a.storage.SignedURI(ctx, args[0], opts)
		return emit(out, uri, err)
	}},
	"s3-refresh": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		uri, err := a.storage.RefreshSignedURI(ctx, args[0])
		return emit(out, uri, err)
	}},
	"sqs-send": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		id, err := a.queue.Send(ctx, args[0], messaging.SendOptions{})
		return emit(out, id, err)
	}},
	"sqs-receive": {0, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		opts := messaging.ReceiveOptions{}
		if len(args) > 0 {
			n, err := parseMaxMessages(args[0])
			if err != nil {
				return err
			}
			opts.MaxMessages = n
		}
		msgs, err := a.queue.Receive(ctx, opts)
		return emit(out, msgs, err)
	}},
	"sqs-delete": {1, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		ok, err := a.queue.Delete(ctx, args[0], messaging.DeleteOptions{})
		return emit(out, ok, err)
	}},
	"ses-send": {3, func(ctx context.Context, a *app, args []string, out io.Writer) error {
		to := mailer.To(strings.Split(args[0], ",")...)
		id, err := a.mailer.Send(ctx, to, args[1], args[2], mailer.SendOptions{})
		return emit(out, id, err)
	}},
}

// offline commands need no façades.
var offline = map[string]command{
	"keygen": {0, func(_ context.Context, _ *app, _ []string, out io.Writer) error {
		key, err := config.GenerateKey(32)
		return emit(out, key, err)
	}},
	"seal": {1, func(_ context.Context, _ *app, args []string, out io.Writer) error {
		enc, err := config.NewEncryptionFromBase64(os.Getenv("CONFIG_ENCRYPTION_KEY"))
		if err != nil {
			return fmt.Errorf("CONFIG_ENCRYPTION_KEY: %w", err)
		}
		sealed, err := enc.Encrypt([]byte(args[0]))
		return emit(out, sealed, err)
	}},
}

// parseMaxMessages accepts the 1..10 range SQS allows per receive.
func parseMaxMessages(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid max: %w", err)
	}
	if n < 1 || n > messaging.DefaultMaxMessages {
		return 0, fmt.Errorf("invalid max: %d is outside 1..%d", n, messaging.DefaultMaxMessages)
	}
	return int32(n), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// emit prints v as JSON. A partial result is still printed when err is set,
// e.g. a successful call whose audit record could not be delivered.
func emit(out io.Writer, v any, err error) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(v); encErr != nil {
		return errors.Join(err, encErr)
	}
	return err
}

// run writes the command result to out and operational logs to logOut.
func run(ctx context.Context, argv []string, out, logOut io.Writer) error {
	utils.SetDefaultWriter(logOut)

	fs := flag.NewFlagSet("facadectl", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "dotenv file to load before reading the environment")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}

	name, args := fs.Arg(0), fs.Args()[1:]
	if cmd, ok := offline[name]; ok {
		if len(args) < cmd.args {
			return errUsage
		}
		return cmd.run(ctx, nil, args, out)
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if len(args) < cmd.args {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	utils.SetDefaultLogLevel(cfg.LogLevel)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := cmd.run(ctx, a, args, out)
	if err := a.close(); err != nil {
		a.logger.Error("failed to flush audit sink", "error", err)
	}
	a.reportMetrics()
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: facadectl [-env file] <command> [args...]")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "facadectl:", err)
		os.Exit(1)
	}
}
