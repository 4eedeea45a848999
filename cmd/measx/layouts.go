package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/measx/layout"
)

func newLayoutsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts [name|file]",
		Short: "List built-in layouts or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range layout.Presets() {
					cfg, err := layout.Preset(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s\t%s\n", a.style.value(name),
						a.style.label(fmt.Sprintf("frame %d, %d channels", cfg.FrameSize, len(cfg.Channels))))
				}
				return nil
			}

			cfg, err := layout.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			b, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = a.out.Write(b)
			return err
		},
	}
}
