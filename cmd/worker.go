/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/recipevault/apiserver/config"
	"github.com/recipevault/apiserver/internal/events"
	"github.com/recipevault/apiserver/internal/mq"
	"github.com/recipevault/apiserver/internal/services"
	"github.com/recipevault/apiserver/internal/storage"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes recipe events and deletes orphaned images",
	Long: `Consumes recipe events from the configured broker (MQ_BACKEND) and
removes images that deleted or updated recipes no longer reference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg)
		ctx := cmd.Context()

		if cfg.MQ.Backend == "" || cfg.MQ.Backend == config.MQBackendNone {
			return errors.New("worker requires MQ_BACKEND to be rabbitmq or pubsub")
		}

		objects, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer queue.Close()

		cleaner := events.NewImageCleaner(services.NewImageService(objects, log), log)
		return cleaner.Run(ctx, queue)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
