package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/topicbridge/internal/app"
	"github.com/nfrund/topicbridge/internal/config"
)

var publishTimeout time.Duration

var publishCmd = &cobra.Command{
	Use:   "publish <topic> <payload|->",
	Short: "Publish one message to a topic",
	Long: `Publishes a single message to the configured broker. Use "-" as the payload
to read it from stdin. Handy for checking that connected clients receive traffic.
Requires the kafka driver: the memory broker only exists inside one process.

Examples:
  topicbridge publish orders '{"id": 1}'
  echo hello | topicbridge publish greetings -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := args[0]
		payload, err := readPayload(args[1], cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.BrokerDriver != config.DriverKafka {
			return fmt.Errorf("publish requires the %s driver, got %q", config.DriverKafka, cfg.BrokerDriver)
		}
		a := app.New(cfg, logger)

		publisher, err := a.Publisher()
		if err != nil {
			return errors.Join(err, a.Shutdown())
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
		defer cancel()
		err = publisher.Publish(ctx, topic, payload)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d bytes to %s\n", len(payload), topic)
		}
		return errors.Join(err, a.Shutdown())
	},
}

func readPayload(arg string, stdin io.Reader) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	payload, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read payload from stdin: %w", err)
	}
	return payload, nil
}

func init() {
	publishCmd.Flags().DurationVar(&publishTimeout, "timeout", 10*time.Second, "publish timeout")
	rootCmd.AddCommand(publishCmd)
}
