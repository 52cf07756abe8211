package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/shadowplay/internal/cueindex"
	"github.com/mgpai22/shadowplay/internal/timecode"
)

var cuesCmd = &cobra.Command{
	Use:   "cues [subtitle_file]",
	Short: "Show subtitle cues around a time",
	Long: `Show the cue containing a time with two cues of context on each side,
or every cue when --at is not given.

Examples:
  shadowplay cues episode.en.srt --at 00:12:03.500
  shadowplay cues lecture.vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runCues,
}

func init() {
	rootCmd.AddCommand(cuesCmd)

	cuesCmd.Flags().
		String("at", "", "Time to preview (HH:MM:SS.mmm)")
}

func runCues(cmd *cobra.Command, args []string) error {
	atStr, _ := cmd.Flags().GetString("at")

	cues, err := loadCues(args[0])
	if err != nil {
		return err
	}
	if cues.Len() == 0 {
		return fmt.Errorf("no cues in %s", args[0])
	}

	if atStr == "" {
		fmt.Fprintln(cmd.OutOrStdout(), renderCues(cues.Cues(), -1))
		return nil
	}

	at, err := timecode.Parse(atStr)
	if err != nil {
		return fmt.Errorf("invalid --at %q: %w", atStr, err)
	}
	w := cues.Preview(at)
	if w.Current < 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No cue at %s\n", timecode.Format(at))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderCues(w.Cues, w.Current))
	return nil
}

// renderCues marks the row at current with an arrow.
func renderCues(cues []cueindex.Cue, current int) string {
	rows := make([][]string, 0, len(cues))
	for i, c := range cues {
		marker := ""
		if i == current {
			marker = "→"
		}
		rows = append(rows, []string{
			marker,
			strconv.Itoa(c.Index + 1),
			timecode.Format(c.Start),
			timecode.Format(c.End),
			strings.ReplaceAll(c.Text, "\n", " / "),
		})
	}
	return renderTable([]string{"", "#", "Start", "End", "Text"}, rows, 1)
}
