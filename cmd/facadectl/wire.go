package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"aws_facade/internal/audit"
	"aws_facade/internal/config"
	"aws_facade/internal/logging"
	"aws_facade/internal/mailer"
	"aws_facade/internal/messaging"
	"aws_facade/internal/metrics"
	"aws_facade/internal/queue"
	"aws_facade/internal/storage"
	"aws_facade/internal/utils"
)

// app holds the façades and the sink they share.
type app struct {
	storage *storage.Storage
	queue   *messaging.Queue
	mailer  *mailer.Mailer

	sink     audit.Sink
	buffered *logging.BufferedSink
	registry *prometheus.Registry
	logger   *utils.Logger
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		registry: prometheus.NewRegistry(),
		logger:   utils.NewLogger("facadectl"),
	}
	m := metrics.New(a.registry)

	if err := a.buildSink(ctx, cfg, m); err != nil {
		a.close()
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.Storage.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		})
	}

	var err error
	a.storage, err = storage.New(ctx, storage.Config{
		Credentials: cfg.Storage.Credentials,
		Bucket:      cfg.Storage.Bucket,
		Sink:        a.sink,
		Builder:     storage.NewClientBuilder(s3Opts...),
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create storage facade: %w", err)
	}

	a.queue, err = messaging.New(ctx, messaging.Config{
		Credentials: cfg.Queue.Credentials,
		QueueURL:    cfg.Queue.URL,
		Sink:        a.sink,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create queue facade: %w", err)
	}

	a.mailer, err = mailer.New(ctx, mailer.Config{
		Credentials: cfg.Mailer.Credentials,
		FromAddress: cfg.Mailer.FromAddress,
		FromUser:    cfg.Mailer.FromUser,
		UseTextBody: cfg.Mailer.UseTextBody,
		Sink:        a.sink,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create mailer facade: %w", err)
	}

	policy := audit.PropagateSinkErrors
	if cfg.Sink.IgnoreErrors {
		policy = audit.IgnoreSinkErrors
	}
	a.storage.SetSinkPolicy(policy)
	a.queue.SetSinkPolicy(policy)
	a.mailer.SetSinkPolicy(policy)
	a.storage.SetMetrics(m)
	a.queue.SetMetrics(m)
	a.mailer.SetMetrics(m)

	return a, nil
}

// buildSink picks the backend from cfg.Sink.Kind and, when asked, puts a
// buffered forwarder in front of it.
func (a *app) buildSink(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	var writer logging.BatchWriter
	switch cfg.Sink.Kind {
	case config.SinkNone:
		return nil
	case config.SinkGraylog:
		writer = logging.NewGraylogSink(logging.GraylogConfig{
			URL:     cfg.Sink.GraylogURL,
			Timeout: cfg.Sink.GraylogTimeout,
		})
	case config.SinkS3:
		w, err := logging.NewS3Writer(ctx, logging.S3WriterConfig{
			Credentials: cfg.Storage.Credentials.WithRegion(cfg.Sink.S3Region),
			Bucket:      cfg.Sink.S3Bucket,
			Prefix:      cfg.Sink.S3Prefix,
			PodName:     cfg.Sink.PodName,
			Endpoint:    cfg.Sink.S3Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 audit writer: %w", err)
		}
		writer = w
	case config.SinkPostgres:
		w, err := logging.NewPostgresWriter(ctx, cfg.Sink.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, w.Close)
		if err := w.EnsureSchema(ctx); err != nil {
			return err
		}
		writer = w
	default:
		return fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}

	if !cfg.Sink.Buffered {
		if s, ok := writer.(audit.Sink); ok {
			a.sink = s
		} else {
			a.sink = logging.NewWriterSink(writer)
		}
		return nil
	}

	qcfg := &queue.Config{
		BatchSize:     cfg.Sink.BatchSize,
		BatchTimeout:  cfg.Sink.FlushInterval,
		MaxRetries:    cfg.Sink.MaxRetries,
		RetryBackoff:  cfg.Sink.RetryBackoff,
		UseRedis:      cfg.Sink.UseRedis,
		RedisAddr:     cfg.Redis.Address,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		QueueName:     cfg.Sink.QueueName,
	}
	q, dlq, err := queue.New(qcfg)
	if err != nil {
		return fmt.Errorf("failed to open audit queue: %w", err)
	}
	a.closers = append(a.closers, q.Close, dlq.Close)

	a.buffered = logging.NewBufferedSink(q, dlq, writer, qcfg, m)
	a.buffered.Start(ctx)
	a.sink = a.buffered
	return nil
}

// close stops the forwarder, which flushes what is still queued, then
// releases the backends.
func (a *app) close() error {
	var errs []error
	if a.buffered != nil {
		if err := a.buffered.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reportMetrics writes every counter with a non-zero value to the debug log.
func (a *app) reportMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value := metric.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			keyvals := []interface{}{"value", value}
			for _, lp := range metric.GetLabel() {
				keyvals = append(keyvals, lp.GetName(), lp.GetValue())
			}
			a.logger.Debug(mf.GetName(), keyvals...)
		}
	}
}
