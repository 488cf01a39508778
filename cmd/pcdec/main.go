package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v = viper.New()

	rootCmd = &cobra.Command{
		Use:   "pcdec",
		Short: "Decompress point cloud messages",
		Long: "pcdec converts point_cloud_interfaces/msg/CompressedPointCloud2 messages into " +
			"sensor_msgs/msg/PointCloud2 messages.\n\nMessages are read and written as JSON.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}
)

func main() {
	if err := execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context) error {
	v.SetEnvPrefix("PCDEC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")

	rootCmd.AddCommand(convertCmd(), compressCmd(), formatsCmd())

	return rootCmd.ExecuteContext(ctx)
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	var log zerolog.Logger
	if v.GetBool("log-pretty") {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}

	return log.Level(level).With().Timestamp().Logger(), nil
}
