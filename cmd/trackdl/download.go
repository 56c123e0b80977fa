package main

import (
	"context"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/deemusic/trackdl/internal/api"
	"github.com/deemusic/trackdl/internal/download"
	"github.com/deemusic/trackdl/internal/metadata"
	"github.com/deemusic/trackdl/internal/network"
	"github.com/deemusic/trackdl/internal/storage"
)

// eventBuffer holds a full run of whole-percent progress plus its notices
const eventBuffer = 128

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download a track, then attach its lyrics and cover",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Track name", Required: true},
			&cli.StringFlag{Name: "singer", Usage: "Singer / artist"},
			&cli.StringFlag{Name: "album", Usage: "Album name"},
			&cli.StringFlag{Name: "source", Usage: "Source identifier (defaults to source.default_source)"},
			&cli.StringFlag{Name: "id", Usage: "Track id within the source", Required: true},
			&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Usage: "Quality label; prompts when omitted"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (defaults to download.output_dir)"},
		},
		Action: r.Download,
	}
}

// Download runs one download workflow
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config

	sourceCfg := api.DefaultSourceConfig(cfg.Source.BaseURL)
	sourceCfg.Timeout = r.sourceTimeout()
	sourceCfg.RequestsPerSecond = cfg.Source.RequestsPerSecond
	sourceCfg.CacheSize = cfg.Source.CacheSize
	sourceCfg.CacheTTL = time.Duration(cfg.Source.CacheTTLMinutes) * time.Minute
	sourceCfg.MaxRetries = cfg.Network.MaxRetries

	source, err := api.NewSourceClient(sourceCfg, r.logger)
	if err != nil {
		return err
	}

	outputDir := cmd.String("output")
	if outputDir == "" {
		outputDir = cfg.Download.OutputDir
	}

	hub := download.NewHub(r.logger)
	deps := download.Dependencies{
		Source:    source,
		Transport: network.NewDownloader(nil),
		Tagger: metadata.NewManager(&metadata.Config{
			EmbedArtwork:  cfg.Download.EmbedArtwork,
			ArtworkSize:   cfg.Download.ArtworkSize,
			LyricLanguage: cfg.Lyrics.Language,
		}),
		Gate:     storage.NewDirGate(outputDir, r.logger),
		Chooser:  r.chooser(),
		Notifier: hub,
	}
	if r.history != nil {
		deps.Recorder = r.history
	}

	opts := download.Options{
		SaveLRCFile:        cfg.Lyrics.Enabled && cfg.Lyrics.SaveLRCFile,
		EmbedLyric:         cfg.Lyrics.Enabled && cfg.Lyrics.EmbedInFile,
		IncludeTranslation: cfg.Lyrics.IncludeTranslation,
		EmbedCover:         cfg.Download.EmbedArtwork,
	}
	orch, err := download.NewOrchestrator(deps, opts, r.logger)
	if err != nil {
		return err
	}

	sourceID := cmd.String("source")
	if sourceID == "" {
		sourceID = cfg.Source.DefaultSource
	}
	track := download.TrackRef{
		Name:   cmd.String("name"),
		Singer: cmd.String("singer"),
		Album:  cmd.String("album"),
		Key:    api.TrackKey{Source: sourceID, ID: cmd.String("id")},
	}

	reqOpts := []download.RequestOption{}
	if q := cmd.String("quality"); q != "" {
		reqOpts = append(reqOpts, download.WithQuality(q))
	}
	if !cfg.Download.QualitySuffix {
		reqOpts = append(reqOpts, download.WithoutQualitySuffix())
	}
	req, err := download.NewRequest(track, outputDir, reqOpts...)
	if err != nil {
		return err
	}

	events := hub.Subscribe(req.ID(), eventBuffer)
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		r.printEvents(events)
	}()

	outcome := orch.Run(ctx, req)
	hub.Unsubscribe(req.ID())
	printer.Wait()

	return r.printOutcome(outcome)
}

func (r *Runner) printEvents(events <-chan download.Event) {
	progressShown := false
	for e := range events {
		switch {
		case e.Progress != nil:
			if e.Progress.Percent >= 0 {
				r.writePlain("\r  %3d%%", e.Progress.Percent)
			} else {
				r.writePlain("\r  %d bytes", e.Progress.Written)
			}
			progressShown = true
		case e.Notice != nil:
			if progressShown {
				r.writePlain("\n")
				progressShown = false
			}
			prefix := ""
			switch e.Notice.Level {
			case download.LevelWarning:
				prefix = "warning: "
			case download.LevelError:
				prefix = "error: "
			}
			r.writePlainln("%s%s", prefix, e.Notice.Message)
		}
	}
	if progressShown {
		r.writePlain("\n")
	}
}

func (r *Runner) printOutcome(outcome *download.DownloadOutcome) error {
	switch outcome.Status {
	case download.StatusSuccess:
		r.writePlainln("saved %s", outcome.FilePath)
		if outcome.LyricPath != "" {
			r.writePlainln("lyric %s", outcome.LyricPath)
		}
		return nil
	case download.StatusFailure:
		return outcome.Err
	default:
		return nil
	}
}
