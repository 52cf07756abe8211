package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/shadowplay/internal/cueindex"
	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/storage"
	"github.com/mgpai22/shadowplay/internal/subtitle"
	"github.com/mgpai22/shadowplay/internal/timecode"
	"github.com/mgpai22/shadowplay/internal/video"
)

var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "Inspect and edit stored marks",
}

var marksListCmd = &cobra.Command{
	Use:   "list [media_file]",
	Short: "List the marked sentences of a video",
	Long: `List marked sentences of a video, or every stored mark set with --all.

Examples:
  shadowplay marks list episode.mkv
  shadowplay marks list episode.mkv --subs episode.en.srt
  shadowplay marks list --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMarksList,
}

var marksClearCmd = &cobra.Command{
	Use:   "clear [media_file]",
	Short: "Remove every mark of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runMarksClear,
}

var marksEditCmd = &cobra.Command{
	Use:   "edit [media_file]",
	Short: "Move a mark to a new time",
	Long: `Move a start or end mark to a new time.

Examples:
  shadowplay marks edit episode.mkv --kind end --from 00:01:02.300 --to 00:01:02.800`,
	Args: cobra.ExactArgs(1),
	RunE: runMarksEdit,
}

var marksExportCmd = &cobra.Command{
	Use:   "export [media_file]",
	Short: "Write marked sentences as a subtitle file",
	Long: `Write each marked sentence (a start mark followed by an end mark) as a
subtitle entry holding the text of the cues it overlaps.

Examples:
  shadowplay marks export episode.mkv --subs episode.en.srt -o sentences.srt
  shadowplay marks export episode.mkv -f vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runMarksExport,
}

func init() {
	rootCmd.AddCommand(marksCmd)
	marksCmd.AddCommand(marksListCmd, marksClearCmd, marksEditCmd, marksExportCmd)

	for _, c := range []*cobra.Command{marksListCmd, marksClearCmd, marksEditCmd, marksExportCmd} {
		c.Flags().
			StringP("subs", "s", "", "Subtitle file the marks belong to (default: found next to the video)")
	}

	marksListCmd.Flags().
		Bool("all", false, "List every stored mark set")

	marksEditCmd.Flags().
		String("kind", "", "Mark kind (start or end)")
	marksEditCmd.Flags().
		String("from", "", "Current time of the mark")
	marksEditCmd.Flags().
		String("to", "", "New time of the mark")
	_ = marksEditCmd.MarkFlagRequired("kind")
	_ = marksEditCmd.MarkFlagRequired("from")
	_ = marksEditCmd.MarkFlagRequired("to")

	marksExportCmd.Flags().
		StringP("format", "f", "srt", "Output subtitle format (srt, vtt)")
	marksExportCmd.Flags().
		StringP("output", "o", "", "Output file path")
}

// loadMarks opens storage and loads the mark set for the media file.
func loadMarks(ctx context.Context, cmd *cobra.Command, mediaPath string) (*marks.Store, storage.KV, string, error) {
	subsPath, _ := cmd.Flags().GetString("subs")
	if subsPath == "" {
		subsPath, _ = video.FindSubtitle(mediaPath)
	}

	kv, err := openStore()
	if err != nil {
		return nil, nil, "", err
	}
	store := marks.NewStore(kv, logger)
	store.Load(ctx, markKey(mediaPath, subsPath))
	return store, kv, subsPath, nil
}

func runMarksList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	all, _ := cmd.Flags().GetBool("all")
	if all || len(args) == 0 {
		kv, err := openStore()
		if err != nil {
			return err
		}
		defer kv.Close()
		out, err := listAllMarks(ctx, kv)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	store, kv, subsPath, err := loadMarks(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer kv.Close()

	cues, err := loadCues(subsPath)
	if err != nil {
		logger.Warnw("Listing without cue text", "subtitle", subsPath, "error", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderSegments(store, cues))
	return nil
}

func listAllMarks(ctx context.Context, kv storage.KV) (string, error) {
	keys, err := kv.Keys(ctx, marks.KeyPrefix())
	if err != nil {
		return "", fmt.Errorf("list mark sets: %w", err)
	}

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		key, ok := marks.ParseKey(k)
		if !ok {
			continue
		}
		raw, found, err := kv.Get(ctx, k)
		if err != nil || !found {
			continue
		}
		rec, err := marks.DecodeRecord(raw)
		if err != nil {
			logger.Warnw("Skipping corrupt mark set", "key", k, "error", err)
			continue
		}
		if rec.Empty() {
			continue
		}
		sub := key.Subtitle
		if sub == "" {
			sub = "-"
		}
		rows = append(rows, []string{
			key.Video,
			sub,
			strconv.Itoa(len(rec.Starts)),
			strconv.Itoa(len(rec.Ends)),
		})
	}
	if len(rows) == 0 {
		return "No marks stored.", nil
	}
	return renderTable([]string{"Video", "Subtitle", "Starts", "Ends"}, rows, 2, 3), nil
}

func renderSegments(store *marks.Store, cues *cueindex.Index) string {
	rec := store.Record()
	if rec.Empty() {
		return fmt.Sprintf("No marks for %s.", store.Key().Video)
	}

	segments := store.Segments()
	rows := make([][]string, 0, len(segments))
	for i, seg := range segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			timecode.Format(seg.Start),
			timecode.Format(seg.End),
			segmentText(cues, seg),
		})
	}

	var b strings.Builder
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"#", "Start", "End", "Text"}, rows, 0))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d start marks, %d end marks, %d sentences", len(rec.Starts), len(rec.Ends), len(segments))
	return b.String()
}

func segmentText(cues *cueindex.Index, seg marks.Segment) string {
	overlapping := cues.Overlapping(seg.Start, seg.End)
	texts := make([]string, 0, len(overlapping))
	for _, c := range overlapping {
		texts = append(texts, strings.ReplaceAll(c.Text, "\n", " "))
	}
	return strings.Join(texts, " ")
}

func runMarksClear(cmd *cobra.Command, args []string) error {
	store, kv, _, err := loadMarks(cmd.Context(), cmd, args[0])
	if err != nil {
		return err
	}
	defer kv.Close()

	rec := store.Record()
	if err := store.Clear(cmd.Context()); err != nil {
		return err
	}
	logger.Infow("Cleared marks",
		"video", store.Key().Video,
		"starts", len(rec.Starts),
		"ends", len(rec.Ends),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d start and %d end marks\n", len(rec.Starts), len(rec.Ends))
	return nil
}

func runMarksEdit(cmd *cobra.Command, args []string) error {
	kindStr, _ := cmd.Flags().GetString("kind")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	kind, err := marks.ParseKind(kindStr)
	if err != nil {
		return err
	}
	from, err := timecode.Parse(fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from %q: %w", fromStr, err)
	}
	to, err := timecode.Parse(toStr)
	if err != nil {
		return fmt.Errorf("invalid --to %q: %w", toStr, err)
	}

	store, kv, _, err := loadMarks(cmd.Context(), cmd, args[0])
	if err != nil {
		return err
	}
	defer kv.Close()

	ok, err := store.Replace(cmd.Context(), kind, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no %s mark at %s", kind, timecode.Format(from))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %s mark %s → %s\n", kind, timecode.Format(from), timecode.Format(to))
	return nil
}

func runMarksExport(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	formatStr, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	format, err := subtitle.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	if outputPath == "" {
		base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
		outputPath = base + ".sentences" + subtitle.GetExtensionForFormat(format)
	}

	store, kv, subsPath, err := loadMarks(cmd.Context(), cmd, mediaPath)
	if err != nil {
		return err
	}
	defer kv.Close()

	cues, err := loadCues(subsPath)
	if err != nil {
		return err
	}

	subs := segmentsToSubtitle(store.Segments(), cues)
	if len(subs.Entries) == 0 {
		return fmt.Errorf("no marked sentences for %s", mediaPath)
	}
	subs.Format = string(format)

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return fmt.Errorf("failed to create subtitle writer: %w", err)
	}
	if err := writer.Write(subs, outputPath); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Sentences exported: %s\n", absOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "  Entries: %d\n", len(subs.Entries))
	return nil
}

// segmentsToSubtitle turns marked sentences into subtitle entries. A segment
// without overlapping cues keeps its timing with a placeholder text.
func segmentsToSubtitle(segments []marks.Segment, cues *cueindex.Index) *subtitle.Subtitle {
	subs := &subtitle.Subtitle{}
	for i, seg := range segments {
		text := segmentText(cues, seg)
		if text == "" {
			text = fmt.Sprintf("Sentence %d", i+1)
		}
		subs.Append(seg.Start, seg.End, text)
	}
	return subs
}
