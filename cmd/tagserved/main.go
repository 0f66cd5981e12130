// Command tagserved starts the HTTP tag query API and, when the job
// file configures sinks, a background telemetry poller, all driven
// from a single YAML job file.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plcgo/goenip/cache"
	"github.com/plcgo/goenip/cipclient"
	"github.com/plcgo/goenip/config"
	"github.com/plcgo/goenip/logx/zaplog"
	"github.com/plcgo/goenip/metrics"
	"github.com/plcgo/goenip/reconnect"
	"github.com/plcgo/goenip/restapi"
	"github.com/plcgo/goenip/tagio"
	"github.com/plcgo/goenip/telemetry"
	"github.com/plcgo/goenip/telemetry/kafkasink"
	"github.com/plcgo/goenip/telemetry/mqttsink"

	redis "github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <job.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(jobPath string) error {
	job, err := config.Load(jobPath)
	if err != nil {
		return err
	}

	log, err := zaplog.NewProduction()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	breaker := reconnect.New(reconnect.DefaultConfig(job.PLC.Address))

	client, err := cipclient.New(job.PLC.Address,
		cipclient.WithRoutePath(job.PLC.RoutePath),
		cipclient.WithTimeout(job.PLC.Timeout()),
		cipclient.WithLogger(log),
		cipclient.WithMetrics(recorder),
		cipclient.WithBreaker(breaker),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	var backend tagio.Backend = client
	if job.Cache != nil {
		rdb := redis.NewClient(&redis.Options{Addr: job.Cache.RedisAddr})
		store := cache.NewStore(rdb, "goenip", job.Cache.CacheTTL())
		backend = cache.New(backend, store, cache.WithLogger(log))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if job.Sinks.MQTT != nil || job.Sinks.Kafka != nil {
		var sinks []telemetry.Sink
		if job.Sinks.MQTT != nil {
			sink, err := mqttsink.New(mqttsink.Config{
				Broker:    job.Sinks.MQTT.Broker,
				ClientID:  job.Sinks.MQTT.ClientID,
				Username:  job.Sinks.MQTT.Username,
				Password:  job.Sinks.MQTT.Password,
				UseTLS:    job.Sinks.MQTT.UseTLS,
				RootTopic: job.Sinks.MQTT.TopicPrefix,
			}, mqttsink.WithLogger(log))
			if err != nil {
				return fmt.Errorf("mqtt sink: %w", err)
			}
			defer sink.Close()
			sinks = append(sinks, sink)
		}
		if job.Sinks.Kafka != nil {
			sink := kafkasink.New(kafkasink.Config{
				Brokers: job.Sinks.Kafka.Brokers,
				Topic:   job.Sinks.Kafka.Topic,
			}, kafkasink.WithLogger(log))
			defer sink.Close()
			sinks = append(sinks, sink)
		}

		jobs := make([]telemetry.Job, 0, len(job.Tags))
		for _, tag := range job.Tags {
			jobs = append(jobs, telemetry.Job{Tag: tag, Count: 1})
		}
		poller := telemetry.New(backend, jobs, sinks, job.PollInterval(), telemetry.WithLogger(log))
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("tagserved: poller stopped: %v", err)
			}
		}()
	}

	if job.HTTP == nil {
		log.Infof("tagserved: no http listener configured, running poller only")
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/", restapi.NewRouter(backend, restapi.WithLogger(log)))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: job.HTTP.Listen, Handler: mux}

	go func() {
		log.Infof("tagserved: listening on %s", job.HTTP.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("tagserved: http server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	cancel()
	return server.Shutdown(shutdownCtx)
}
