// Command mp4mux drives the classic or hybrid muxer from a YAML job
// description: one sample entry plus an ordered sample list per track.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/streammux/isobmff/mux"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mp4mux:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mp4mux <job.yaml>",
		Short: "Mux an MP4 file from a YAML job description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			return runJob(cfg)
		},
	}
	return cmd
}

func runJob(cfg *muxConfig) error {
	tracks := make([]mux.TrackConfig, len(cfg.Tracks))
	for i, tc := range cfg.Tracks {
		mc, err := tc.toTrackConfig()
		if err != nil {
			return err
		}
		tracks[i] = mc
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	if cfg.Hybrid != nil {
		return runHybridJob(cfg, tracks, out)
	}
	return runClassicJob(cfg, tracks, out)
}

func runClassicJob(cfg *muxConfig, tracks []mux.TrackConfig, out *os.File) error {
	m, err := mux.NewMp4FileMuxer(tracks, mux.Mp4FileMuxerOptions{ReservedMoovBoxSize: cfg.FaststartReservedBytes})
	if err != nil {
		return err
	}
	if _, err := out.WriteAt(m.InitialBoxesBytes(), 0); err != nil {
		return err
	}
	for i, tc := range cfg.Tracks {
		for _, sc := range tc.Samples {
			data, err := hex.DecodeString(sc.DataHex)
			if err != nil {
				return fmt.Errorf("track %d sample: %w", tc.TrackID, err)
			}
			offset := m.NextPosition()
			if _, err := out.WriteAt(data, int64(offset)); err != nil {
				return err
			}
			s := mux.Sample{
				Duration:  sc.Duration,
				CTSOffset: sc.CTSOffset,
				Data:      data,
				Flags:     mux.SampleFlags{Sync: sc.Sync},
			}
			if err := m.AppendSample(i, offset, s); err != nil {
				return err
			}
		}
	}
	finalized, err := m.Finalize()
	if err != nil {
		return err
	}
	return writeOffsetBytes(out, finalized.OffsetAndBytesPairs())
}

func runHybridJob(cfg *muxConfig, tracks []mux.TrackConfig, out *os.File) error {
	m, err := mux.NewMp4HybridFileMuxer(tracks, mux.Mp4HybridFileMuxerOptions{
		ReservedMoovBoxSize: cfg.FaststartReservedBytes,
		FragmentDuration:    time.Duration(cfg.Hybrid.FragmentDurationTicks) * time.Second / time.Duration(tracks[cfg.Hybrid.ReferenceTrack].Timescale),
	})
	if err != nil {
		return err
	}
	for i, tc := range cfg.Tracks {
		for _, sc := range tc.Samples {
			data, err := hex.DecodeString(sc.DataHex)
			if err != nil {
				return fmt.Errorf("track %d sample: %w", tc.TrackID, err)
			}
			s := mux.Sample{
				Duration:  sc.Duration,
				CTSOffset: sc.CTSOffset,
				Data:      data,
				Flags:     mux.SampleFlags{Sync: sc.Sync},
			}
			if err := m.AppendSample(i, s); err != nil {
				return err
			}
		}
		if err := drainOutput(m, out); err != nil {
			return err
		}
	}
	if err := m.Finalize(); err != nil {
		return err
	}
	return drainOutput(m, out)
}

func writeOffsetBytes(out *os.File, pairs []mux.OffsetBytes) error {
	for _, p := range pairs {
		if _, err := out.WriteAt(p.Bytes, int64(p.Offset)); err != nil {
			return err
		}
	}
	return nil
}

func drainOutput(m *mux.Mp4HybridFileMuxer, out *os.File) error {
	for {
		rec, ok := m.NextOutput()
		if !ok {
			return nil
		}
		if _, err := out.WriteAt(rec.Bytes, int64(rec.Offset)); err != nil {
			return err
		}
	}
}
