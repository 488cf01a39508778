package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	kzstd "github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/teenjuna/pcdec"
	"github.com/teenjuna/pcdec/codec/zstd"
)

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert a CompressedPointCloud2 message into a PointCloud2 message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			var in pcdec.CompressedPointCloud
			if err := readJSON(args, &in); err != nil {
				return fmt.Errorf("read message: %w", err)
			}

			converter := pcdec.New(
				pcdec.WithLogger(log),
				pcdec.WithMaxDataSize(v.GetInt("max-data-size")),
			)
			defer func() {
				if err := converter.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close converter")
				}
			}()

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("init-timeout"))
			defer cancel()
			if err := converter.Registry().Wait(ctx); err != nil {
				log.Warn().Err(err).Msg("not all decoders are initialized")
			}

			logFields(log, in.Fields)

			out := converter.Convert(&in)
			if out.Data == nil && v.GetBool("strict") {
				return fmt.Errorf("payload of format %q wasn't decoded", in.Format)
			}

			log.Info().
				Str("format", in.Format).
				Int("compressed_size", len(in.CompressedData)).
				Int("size", len(out.Data)).
				Msg("converted message")

			return writeJSON(out)
		},
	}

	cmd.Flags().String("out", "", "output file (stdout if empty)")
	cmd.Flags().Duration("init-timeout", 10*time.Second, "time to wait for decoders to initialize")
	cmd.Flags().Int("max-data-size", pcdec.DefaultMaxDataSize, "maximum declared size of the payload")
	cmd.Flags().Bool("strict", false, "fail if the payload can't be decoded")

	return cmd
}

func compressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress [file]",
		Short: "Compress a PointCloud2 message into a zstd CompressedPointCloud2 message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			var in pcdec.PointCloud
			if err := readJSON(args, &in); err != nil {
				return fmt.Errorf("read message: %w", err)
			}
			if expected := int(in.RowStep) * int(in.Height); len(in.Data) != expected {
				return fmt.Errorf("data has %d bytes, row_step * height is %d", len(in.Data), expected)
			}

			level := kzstd.EncoderLevelFromZstd(v.GetInt("level"))
			codec := zstd.New().WithEncoderOptions(kzstd.WithEncoderLevel(level))
			defer func() {
				if err := codec.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close codec")
				}
			}()

			compressed, err := codec.Encode(in.Data)
			if err != nil {
				return fmt.Errorf("compress: %w", err)
			}

			log.Info().
				Stringer("level", level).
				Int("size", len(in.Data)).
				Int("compressed_size", len(compressed)).
				Msg("compressed message")

			return writeJSON(&pcdec.CompressedPointCloud{
				Header:         in.Header,
				Height:         in.Height,
				Width:          in.Width,
				Fields:         in.Fields,
				IsBigendian:    in.IsBigendian,
				PointStep:      in.PointStep,
				RowStep:        in.RowStep,
				IsDense:        in.IsDense,
				Format:         pcdec.FormatZstd,
				CompressedData: compressed,
			})
		},
	}

	cmd.Flags().String("out", "", "output file (stdout if empty)")
	cmd.Flags().Int("level", 3, "zstd compression level")

	return cmd
}

func formatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported formats and the state of their decoders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			converter := pcdec.New(pcdec.WithLogger(log))
			defer func() {
				if err := converter.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close converter")
				}
			}()

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("init-timeout"))
			defer cancel()
			if err := converter.Registry().Wait(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				log.Warn().Err(err).Msg("decoder failed to initialize")
			}

			registry := converter.Registry()
			for _, format := range registry.Formats() {
				if err := registry.Err(format); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%v\n", format, registry.State(format), err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", format, registry.State(format))
			}

			return nil
		},
	}

	cmd.Flags().Duration("init-timeout", 10*time.Second, "time to wait for decoders to initialize")

	return cmd
}

func logFields(log zerolog.Logger, fields []pcdec.PointField) {
	if e := log.Debug(); e.Enabled() {
		arr := zerolog.Arr()
		for _, f := range fields {
			arr.Dict(zerolog.Dict().
				Str("name", f.Name).
				Uint32("offset", f.Offset).
				Stringer("datatype", f.Datatype).
				Int("bytes", f.Datatype.Size()*int(f.Count)))
		}
		e.Array("fields", arr).Msg("message fields")
	}
}

func readJSON(args []string, msg any) error {
	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(msg)
}

func writeJSON(msg any) error {
	out := v.GetString("out")
	if out == "" {
		return encodeJSON(os.Stdout, msg)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	return encodeAndClose(f, msg)
}

func encodeAndClose(wc io.WriteCloser, msg any) error {
	err := encodeJSON(wc, msg)
	if closeErr := wc.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("close: %w", closeErr))
	}
	return err
}

func encodeJSON(w io.Writer, msg any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msg)
}
