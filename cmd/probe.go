package cmd

import (
	"context"
	"fmt"

	"Sonora/core/audio"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file>...",
	Short: "用 ffprobe 读取音频时长",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		prober := audio.NewFFprobeProber(cfg.FFprobePath, cfg.ProbeTimeout)
		for _, path := range args {
			d := prober.Probe(context.Background(), path)
			fmt.Printf("%s\t%s\n", path, d)
		}
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
