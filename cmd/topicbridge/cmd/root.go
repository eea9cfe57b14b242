package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/topicbridge/internal/config"
	"github.com/nfrund/topicbridge/internal/logging"
)

var brokerDriver string

var rootCmd = &cobra.Command{
	Use:   "topicbridge",
	Short: "Bridge WebSocket clients to Kafka topics",
	Long: `topicbridge lets browser clients follow a Kafka topic over a WebSocket.

A client connects to /kafka, sends a topic name as a text frame, and from then
on receives every new message published to that topic. Sending another topic
name switches the subscription.

Available commands:
  serve     Run the WebSocket bridge
  publish   Publish one message to a topic
  version   Print the version

Use "topicbridge [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokerDriver, "broker", "", "broker driver override: kafka or memory")
}

// loadConfig reads configuration, applies flag overrides and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	if brokerDriver != "" {
		switch brokerDriver {
		case config.DriverKafka, config.DriverMemory:
			cfg.BrokerDriver = brokerDriver
		default:
			return nil, nil, fmt.Errorf("unknown broker driver %q", brokerDriver)
		}
	}
	return cfg, logging.New(cfg.LogFormat, cfg.LogLevel), nil
}
