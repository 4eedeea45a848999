package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/measx"
)

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-file>",
		Short: "Show the start and end time of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := source(ctx, args[0])
			if err != nil {
				return err
			}
			sf, err := measx.OpenSessionFrom(ctx, src, a.readerOptions()...)
			if err != nil {
				return err
			}
			defer sf.Close()

			startRaw, err := sf.StartTime()
			if err != nil {
				return err
			}
			a.style.field(a.out, "start", startRaw)

			// Older headers may end after the start field.
			endRaw, err := sf.EndTime()
			if err != nil {
				a.style.field(a.out, "end", a.style.warn(err))
				return nil
			}
			a.style.field(a.out, "end", endRaw)

			start, serr := measx.ParseTimestamp(startRaw)
			end, eerr := measx.ParseTimestamp(endRaw)
			if serr == nil && eerr == nil {
				a.style.field(a.out, "duration", end.Sub(start))
			}
			return nil
		},
	}
}
