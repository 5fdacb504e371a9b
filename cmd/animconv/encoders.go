package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"anim-converter/internal/encoder"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const probeTimeout = 30 * time.Second

// listEncoders probes ffmpeg and prints which encoder each output format
// will use, with and without transparency.
func listEncoders(ctx context.Context, ffmpegPath string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	caps, err := encoder.ProbeEncoders(ctx, ffmpegPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, renderEncoderTable(encoder.ChooseEncoders(caps)))
	return nil
}

func renderEncoderTable(choices []encoder.EncoderChoice) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"Format", "Opaque", "Transparent"})

	for _, c := range choices {
		opaque := c.Opaque
		if opaque == "" {
			opaque = "(ffmpeg default)"
		}
		alpha := c.Alpha
		if alpha == "" {
			alpha = "unavailable, falls back to opaque"
		}
		tw.AppendRow(table.Row{string(c.Format), opaque, alpha})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
