package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plcgo/goenip/cipclient"
	"github.com/plcgo/goenip/config"
	"github.com/plcgo/goenip/tagio"
	"github.com/plcgo/goenip/telemetry"
	"github.com/plcgo/goenip/telemetry/kafkasink"
	"github.com/plcgo/goenip/telemetry/mqttsink"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Run a one-shot poll/publish cycle from a job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobOnce(args[0])
		},
	}
	return cmd
}

func runJobOnce(path string) error {
	job, err := config.Load(path)
	if err != nil {
		return err
	}

	client, err := cipclient.New(job.PLC.Address,
		cipclient.WithRoutePath(job.PLC.RoutePath),
		cipclient.WithTimeout(job.PLC.Timeout()),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	var backend tagio.Backend = client

	var sinks []telemetry.Sink
	if job.Sinks.MQTT != nil {
		sink, err := mqttsink.New(mqttsink.Config{
			Broker:    job.Sinks.MQTT.Broker,
			ClientID:  job.Sinks.MQTT.ClientID,
			Username:  job.Sinks.MQTT.Username,
			Password:  job.Sinks.MQTT.Password,
			UseTLS:    job.Sinks.MQTT.UseTLS,
			RootTopic: job.Sinks.MQTT.TopicPrefix,
		})
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
		})
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	jobs := make([]telemetry.Job, 0, len(job.Tags))
	for _, tag := range job.Tags {
		jobs = append(jobs, telemetry.Job{Tag: tag, Count: 1})
	}

	poller := telemetry.New(backend, jobs, sinks, job.PollInterval())
	ctx, cancel := context.WithTimeout(context.Background(), job.PLC.Timeout()*time.Duration(len(jobs)+1))
	defer cancel()
	poller.RunOnce(ctx)
	return nil
}
