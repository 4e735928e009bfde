package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/climdo/internal/config"
	"github.com/five82/climdo/internal/logtail"
)

func (c *cli) logsCmd() *cobra.Command {
	var lines int
	var level string
	var plain bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the end of the client log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			var minLevel slog.Level
			if err := minLevel.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
				return fmt.Errorf("invalid --level %q: use debug, info, warn or error", level)
			}

			path := cfg.LogPath()
			out, err := logtail.Read(path, lines)
			if err != nil {
				return err
			}
			out = logtail.Filter(out, minLevel)
			if len(out) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No log lines in %s\n", path)
				return nil
			}
			if !plain {
				out = logtail.ColorizeLines(out)
			}
			for _, line := range out {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 200, "number of lines to read from the end")
	cmd.Flags().StringVar(&level, "level", "debug", "lowest level to show")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colors")
	return cmd
}
