package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/measx"
	"github.com/hupe1980/measx/codec"
)

type seriesInfo struct {
	Path       string `json:"path"`
	Size       int    `json:"size"`
	FrameSize  int    `json:"frame_size"`
	FrameCount int    `json:"frame_count"`
	Remainder  int    `json:"remainder"`
}

func newInfoCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <series>",
		Short: "Show the geometry of a frame-series file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := source(ctx, args[0])
			if err != nil {
				return err
			}
			sf, err := measx.OpenSeriesFrom(ctx, src, a.readerOptions()...)
			if err != nil {
				return err
			}
			defer sf.Close()

			info := seriesInfo{Path: sf.Path(), Size: sf.Size()}
			if info.FrameSize, err = sf.FrameSize(); err != nil {
				return err
			}
			if info.FrameCount, err = sf.FrameCount(); err != nil {
				return err
			}
			if info.Remainder, err = sf.Remainder(); err != nil {
				return err
			}

			if asJSON {
				return codec.WriteLine(a.out, a.codec, info)
			}

			a.style.field(a.out, "path", info.Path)
			a.style.field(a.out, "size", info.Size)
			a.style.field(a.out, "frame size", info.FrameSize)
			a.style.field(a.out, "frames", info.FrameCount)
			if info.Remainder != 0 {
				a.style.field(a.out, "remainder", a.style.warn(info.Remainder))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
