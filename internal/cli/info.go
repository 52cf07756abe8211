package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgpai22/shadowplay/internal/timecode"
	"github.com/mgpai22/shadowplay/internal/video"
)

var infoCmd = &cobra.Command{
	Use:   "info [media_file]",
	Short: "Show media details and the subtitle that would be used",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}

	info, err := video.Probe(cmd.Context(), mediaPath)
	if err != nil {
		return fmt.Errorf("failed to probe media: %w", err)
	}

	subsPath, found := video.FindSubtitle(mediaPath)
	if !found {
		subsPath = "-"
	}
	resolution := "-"
	if info.Width > 0 && info.Height > 0 {
		resolution = fmt.Sprintf("%dx%d", info.Width, info.Height)
	}

	rows := [][]string{
		{"Path", info.Path},
		{"Duration", timecode.Format(info.Seconds())},
		{"Resolution", resolution},
		{"Frame rate", fmt.Sprintf("%.3g", info.FrameRate)},
		{"Codec", info.Codec},
		{"Audio", fmt.Sprintf("%t", info.HasAudio)},
		{"Subtitle", subsPath},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
	return nil
}
