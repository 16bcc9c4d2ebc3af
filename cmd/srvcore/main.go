package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/llxisdsh/srvcore/internal/logging"
)

var (
	debugFlag bool

	rootCmd = &cobra.Command{
		Use:   "srvcore",
		Short: "Demos for the srvcore concurrency primitives",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugFlag {
				logging.EnableDebug(true)
			}
		},
	}

	queueCmd = &cobra.Command{
		Use:   "queue",
		Short: "Run a producer and a blocking consumer over a BlockingQueue",
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, _ := cmd.Flags().GetDuration("duration")
			interval, _ := cmd.Flags().GetDuration("interval")
			if duration <= 0 || interval <= 0 {
				return fmt.Errorf("duration and interval must be positive")
			}
			stats, err := runQueue(cmd.Context(), cmd.OutOrStdout(), duration, interval)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d, popped %d, left %d\n",
				stats.pushed, stats.popped, stats.left)
			return nil
		},
	}

	lockCmd = &cobra.Command{
		Use:   "lock",
		Short: "Update a shared counter from several workers under one Lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			iterations, _ := cmd.Flags().GetInt("iterations")
			if workers <= 0 || iterations <= 0 {
				return fmt.Errorf("workers and iterations must be positive")
			}
			count, err := runLock(cmd.OutOrStdout(), workers, iterations)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "count %d (want %d)\n", count, workers*iterations)
			if count != workers*iterations {
				return fmt.Errorf("lost updates: got %d, want %d", count, workers*iterations)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	queueCmd.Flags().Duration("duration", 3*time.Second, "How long the producer runs")
	queueCmd.Flags().Duration("interval", 10*time.Millisecond, "Pause between pushes")

	lockCmd.Flags().IntP("workers", "w", 5, "Number of workers")
	lockCmd.Flags().IntP("iterations", "n", 10000, "Increments per worker")

	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(lockCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logging.ErrorLog.Printf("%v", err)
		os.Exit(1)
	}
}
