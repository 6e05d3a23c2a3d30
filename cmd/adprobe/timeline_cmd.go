// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ManuGH/adsession/internal/csm"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/vast"
	"github.com/spf13/cobra"
)

func newTimelineCmd() *cobra.Command {
	var (
		duration float64
		asJSON   bool
		depth    int
	)
	cmd := &cobra.Command{
		Use:   "timeline <vmap.xml>",
		Short: "Print the ad timeline a VMAP document produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := vast.ParseVMAP(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			client := csm.NewClient(csm.Config{})
			b := vast.NewBuilder(vast.NewResolver(client, depth), client)
			breaks, errs := b.BuildVMAP(cmd.Context(), doc, duration)
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", e)
			}

			tl := timeline.New(breaks...)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tl.Snapshot())
			}
			return printTimeline(cmd.OutOrStdout(), tl)
		},
	}
	cmd.Flags().Float64Var(&duration, "content-duration", 0, "content duration in seconds, resolves percent and end offsets")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the timeline as JSON")
	cmd.Flags().IntVar(&depth, "max-wrapper-depth", vast.DefaultMaxWrapperDepth, "maximum VAST wrapper chain length")
	return cmd
}

func printTimeline(w io.Writer, tl *timeline.Timeline) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BREAK\tPOSITION\tTYPE\tSTART\tDURATION\tADVERT\tAD START\tAD DURATION")
	for _, b := range tl.Snapshot() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.3f\t\t\t\n", b.ID, b.Position, b.Type, b.Start, b.Duration)
		for _, a := range b.Adverts {
			fmt.Fprintf(tw, "\t\t\t\t\t%s\t%.3f\t%.3f\n", a.ID, a.Start, a.Duration)
		}
	}
	fmt.Fprintf(tw, "\ntotal ad duration\t%.3f\n", tl.TotalAdDuration())
	return tw.Flush()
}
