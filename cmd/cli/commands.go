package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/amram/mixer"
	"github.com/himanishpuri/AmramAI/pkg/models"
	"github.com/himanishpuri/AmramAI/pkg/utils"
)

// signalContext is cancelled on Ctrl-C so long separations stop between
// windows instead of being killed mid-write.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <youtube-url|audio-file>",
		Short: "Show title, length and uploader of a video, or the format of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(time.Minute)
			defer cancel()

			if utils.FileExists(args[0]) {
				meta, err := audio.ReadMetadataFFmpeg(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to probe %s: %w", args[0], err)
				}
				printMetadata(meta)
				return nil
			}

			svc, _, err := createService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			fmt.Println("🔍 Fetching video info...")
			info, err := svc.GetVideoInfo(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get video info: %w", err)
			}
			printVideoInfo(info)
			return nil
		},
	}
}

func printMetadata(meta *audio.Metadata) {
	title := meta.Title
	if title == "" {
		title = meta.Filename
	}
	fmt.Printf("\n🎵 %s\n", title)
	if meta.Artist != "" {
		fmt.Printf("   Artist:   %s\n", meta.Artist)
	}
	fmt.Printf("   Duration: %s\n", formatDuration(meta.Duration()))
	fmt.Printf("   Format:   %s/%s, %d Hz, %d ch\n", meta.Format, meta.Codec, meta.SampleRate, meta.Channels)
	if meta.BitRate > 0 {
		fmt.Printf("   Bitrate:  %s/s\n", humanize.Bytes(uint64(meta.BitRate/8)))
	}
	if !audio.IsSupported(meta.Filename) {
		fmt.Println("   ⚠️  extension not supported for separation")
	}
}

func printVideoInfo(info *audio.VideoInfo) {
	fmt.Printf("\n🎬 %s\n", info.Title)
	fmt.Printf("   Duration: %s\n", formatDuration(info.Length()))
	if author := info.Author(); author != "" {
		fmt.Printf("   Uploader: %s\n", author)
	}
	if info.ViewCount > 0 {
		fmt.Printf("   Views:    %s\n", humanize.Comma(info.ViewCount))
	}
	if up := info.Uploaded(); !up.IsZero() {
		fmt.Printf("   Uploaded: %s (%s)\n", up.Format("2006-01-02"), humanize.Time(up))
	}
	if info.Thumbnail != "" {
		fmt.Printf("   Thumb:    %s\n", info.Thumbnail)
	}
}

func newDownloadCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "download <youtube-url>",
		Short: "Download the audio of a video as WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			separate, _ := cmd.Flags().GetBool("separate")
			url := args[0]
			if !utils.IsYouTubeURL(url) {
				fmt.Printf("⚠️  %s does not look like a YouTube URL, trying anyway\n", url)
			}

			svc, _, err := createService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := signalContext(0)
			defer cancel()

			fmt.Println("📥 Downloading audio...")
			bar := newBarSink(os.Stdout, "   download")
			path, info, err := svc.DownloadAudio(ctx, url, bar.Report)
			bar.Done()
			if err != nil {
				return err
			}
			fmt.Printf("✅ Downloaded \"%s\" (%s)\n", info.Title, formatDuration(info.Length()))
			fmt.Printf("   File: %s%s\n", path, fileSize(path))

			if !separate {
				return nil
			}
			return runSeparation(ctx, svc, path)
		},
	}
	c.Flags().Bool("separate", false, "Separate the downloaded audio into stems")
	return c
}

func newSeparateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "separate <audio-file>",
		Short: "Split a local audio file into stems",
		Long: "Split a local audio file into stems. Supported formats: " +
			strings.Join(audio.SupportedExtensions, " "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.FileExists(args[0]) {
				return fmt.Errorf("file not found: %s", args[0])
			}
			svc, _, err := createService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := signalContext(0)
			defer cancel()
			return runSeparation(ctx, svc, args[0])
		},
	}
}

func runSeparation(ctx context.Context, svc amram.Service, path string) error {
	fmt.Printf("🎛️  Separating %s\n", utils.BaseName(path))
	fmt.Println("   This may take a while for long tracks")

	started := time.Now()
	bar := newBarSink(os.Stdout, "   progress")
	res, err := svc.SeparateTracks(ctx, path, bar)
	bar.Done()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("separation cancelled")
		}
		return fmt.Errorf("separation failed: %w", err)
	}
	printSeparation(res, time.Since(started))
	return nil
}

func printSeparation(res *amram.SeparationResult, took time.Duration) {
	if res.Partial() {
		fmt.Printf("\n⚠️  Separation finished %s in %s\n", res.Status, formatDuration(took))
		for _, s := range res.Skipped {
			fmt.Printf("   skipped samples [%d, %d) (%s)\n", s.Start, s.End, s.Reason)
		}
	} else {
		fmt.Printf("\n✅ Separation complete in %s\n", formatDuration(took))
	}
	fmt.Printf("   Job:    %s\n", res.Job.ID)
	fmt.Printf("   Output: %s\n", res.OutputDir)
	for _, stem := range res.Stems {
		fmt.Printf("   • %-8s %s%s\n", stem.Name, stem.Path, fileSize(stem.Path))
	}
}

func newMixCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "mix <job-id>",
		Short: "Build a custom mix from the stems of a job",
		Example: "  amram mix 3f2a... --level vocals=0.2 --level drums=1 --mute other\n" +
			"  amram mix 3f2a... --solo bass --out bass_only.wav",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			levels, _ := cmd.Flags().GetStringArray("level")
			mutes, _ := cmd.Flags().GetStringSlice("mute")
			solos, _ := cmd.Flags().GetStringSlice("solo")
			out, _ := cmd.Flags().GetString("out")

			svc, _, err := createService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			job, err := svc.GetJob(args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}
			tracks, err := buildMixTracks(job.Stems, levels, mutes, solos)
			if err != nil {
				return err
			}
			if out == "" {
				out = svc.CustomMixPath(job.Title)
			}

			ctx, cancel := signalContext(5 * time.Minute)
			defer cancel()

			fmt.Println("🎚️  Mixing...")
			mix, err := svc.MixTracks(ctx, tracks, out)
			if err != nil {
				return fmt.Errorf("mix failed: %w", err)
			}
			fmt.Printf("✅ Custom mix saved: %s%s\n", out, fileSize(out))
			fmt.Printf("   Used: %s\n", strings.Join(mix.Used, ", "))
			if len(mix.Skipped) > 0 {
				fmt.Printf("   Skipped: %s\n", strings.Join(mix.Skipped, ", "))
			}
			return nil
		},
	}
	c.Flags().StringArray("level", nil, "Stem level as name=value with value in [0,1] (repeatable, default 1)")
	c.Flags().StringSlice("mute", nil, "Stems to mute")
	c.Flags().StringSlice("solo", nil, "Stems to solo (overrides mute)")
	c.Flags().StringP("out", "o", "", "Output WAV (default: <processed>/<title>_custom_mix.wav)")
	return c
}

// buildMixTracks applies name=level specs and mute/solo lists to stems.
// Unknown stem names are an error.
func buildMixTracks(stems []models.Stem, levels, mutes, solos []string) ([]models.MixTrack, error) {
	if len(stems) == 0 {
		return nil, errors.New("job has no stems")
	}
	byName := make(map[string]*models.MixTrack, len(stems))
	tracks := make([]models.MixTrack, len(stems))
	for i, s := range stems {
		tracks[i] = models.MixTrack{Name: s.Name, Path: s.Path, Level: 1}
		byName[s.Name] = &tracks[i]
	}
	lookup := func(name string) (*models.MixTrack, error) {
		t, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown stem %q", name)
		}
		return t, nil
	}

	for _, spec := range levels {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("level %q: want name=value", spec)
		}
		t, err := lookup(name)
		if err != nil {
			return nil, err
		}
		lvl, err := mixer.ParseLevel(value)
		if err != nil {
			return nil, fmt.Errorf("level for %s: %w", name, err)
		}
		t.Level = lvl
	}
	for _, name := range mutes {
		t, err := lookup(name)
		if err != nil {
			return nil, err
		}
		t.Mute = true
	}
	for _, name := range solos {
		t, err := lookup(name)
		if err != nil {
			return nil, err
		}
		t.Solo = true
	}
	return tracks, nil
}

func newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "history",
		Aliases: []string{"list", "ls"},
		Short:   "List past separations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			svc, _, err := createService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			jobs, err := svc.ListJobs(limit)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Println("\n📭 No separations yet")
				return nil
			}
			fmt.Printf("\n📚 %d separation(s):\n\n", len(jobs))
			for i, job := range jobs {
				printJob(i+1, job)
			}
			return nil
		},
	}
	c.Flags().IntP("limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	return c
}

func printJob(n int, job models.Job) {
	fmt.Printf("%d. %s [%s] %s\n", n, job.Title, job.Status, humanize.Time(job.CreatedAt))
	fmt.Printf("   ID: %s | Model: %s | Length: %s\n", job.ID, job.Model, formatDuration(time.Duration(job.DurationMs)*time.Millisecond))
	if job.FailedWindows > 0 || job.GapSamples > 0 {
		fmt.Printf("   %d of %d window(s) failed, %s silent samples\n",
			job.FailedWindows, job.Windows, humanize.Comma(int64(job.GapSamples)))
	}
	if job.SourceURL != "" {
		fmt.Printf("   Source: %s\n", job.SourceURL)
	}
	if job.Error != "" {
		fmt.Printf("   Error: %s\n", job.Error)
	}
	if job.OutputDir != "" {
		fmt.Printf("   Stems: %s (%d)\n", job.OutputDir, len(job.Stems))
	}
	fmt.Println()
}

func newDeleteCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Remove a separation from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetBool("keep-files")
			svc, _, err := createService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			job, err := svc.GetJob(args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}
			if err := svc.DeleteJob(job.ID, !keep); err != nil {
				return fmt.Errorf("failed to delete job: %w", err)
			}
			fmt.Printf("\n✅ Deleted %s (%s)\n", job.Title, job.ID)
			if !keep && job.OutputDir != "" {
				fmt.Printf("   Removed %s\n", job.OutputDir)
			}
			return nil
		},
	}
	c.Flags().Bool("keep-files", false, "Keep the stem files on disk")
	return c
}

func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// fileSize renders " (1.2 MB)" for an existing file, or nothing.
func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + humanize.Bytes(uint64(info.Size())) + ")"
}
