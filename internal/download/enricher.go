package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/deemusic/trackdl/internal/errors"
	"github.com/deemusic/trackdl/internal/metadata"
	"github.com/deemusic/trackdl/internal/monitoring"
)

// tempFile removes its path at most once
type tempFile struct {
	path string
	once sync.Once
	err  error
}

func newTempFile(dir, pattern string) (*tempFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return nil, err
	}
	return &tempFile{path: name}, nil
}

// Cleanup deletes the file; later calls return the first result
func (t *tempFile) Cleanup() error {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			t.err = err
		}
	})
	return t.err
}

// enricher attaches lyrics and cover art after a successful write
type enricher struct {
	source    Source
	transport Transport
	tagger    Tagger
	notifier  Notifier
	options   Options
	logger    *zap.Logger

	// tag writers rewrite the whole file, so they must not overlap
	tagMu sync.Mutex
}

type enrichResult struct {
	lyricPath string
	warnings  []string
}

// run executes lyric and cover enrichment concurrently; failures become warnings
func (e *enricher) run(ctx context.Context, req *DownloadRequest, filePath string) enrichResult {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		res       enrichResult
		lyricPath string
	)

	fail := func(kind apperrors.EnrichmentKind, err error) {
		appErr := apperrors.NewEnrichmentError(kind, err)
		monitoring.RecordEnrichmentFailure(string(kind))
		e.logger.Warn("Enrichment failed",
			zap.String("request_id", req.ID()),
			zap.String("kind", string(kind)),
			zap.Error(err))
		e.notifier.Notify(Notice{RequestID: req.ID(), Level: LevelWarning, Message: appErr.Message + ": " + err.Error()})

		mu.Lock()
		res.warnings = append(res.warnings, appErr.Message)
		mu.Unlock()
	}

	e.basicTags(req, filePath)

	wg.Add(2)
	go func() {
		defer wg.Done()
		path, err := e.lyric(ctx, req, filePath)
		if err != nil {
			fail(apperrors.EnrichmentLyric, err)
		}
		lyricPath = path
	}()
	go func() {
		defer wg.Done()
		if err := e.cover(ctx, req, filePath); err != nil {
			fail(apperrors.EnrichmentCover, err)
		}
	}()
	wg.Wait()

	res.lyricPath = lyricPath
	return res
}

// basicTags writes title, artist and album; a failure is only logged
func (e *enricher) basicTags(req *DownloadRequest, filePath string) {
	track := req.Track()
	e.tagMu.Lock()
	defer e.tagMu.Unlock()
	if err := e.tagger.WriteBasicTags(filePath, metadata.TrackTags{
		Title:  track.Name,
		Artist: track.Singer,
		Album:  track.Album,
	}); err != nil {
		e.logger.Debug("Basic tags not written",
			zap.String("request_id", req.ID()),
			zap.String("path", filePath),
			zap.Error(err))
	}
}

// lyric writes the .lrc sidecar and/or embeds the lyric. The returned path is
// set whenever the sidecar was written, even if embedding then failed.
func (e *enricher) lyric(ctx context.Context, req *DownloadRequest, filePath string) (string, error) {
	if !e.options.SaveLRCFile && !e.options.EmbedLyric {
		return "", nil
	}

	info, err := e.source.Lyric(ctx, req.Track().Key)
	if err != nil {
		return "", fmt.Errorf("fetch lyric: %w", err)
	}
	if info == nil || strings.TrimSpace(info.Lyric) == "" {
		return "", nil
	}

	var errs []error
	var lrcPath string
	if e.options.SaveLRCFile {
		if lrcPath, err = metadata.WriteLRCFile(filePath, info.Lyric); err != nil {
			errs = append(errs, err)
		}
	}
	if e.options.EmbedLyric {
		translation := ""
		if e.options.IncludeTranslation {
			translation = info.TLyric
		}
		e.tagMu.Lock()
		err := e.tagger.WriteLyricTag(filePath, info.Lyric, translation)
		e.tagMu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("embed lyric: %w", err))
		}
	}
	return lrcPath, errors.Join(errs...)
}

// cover downloads the picture to a temp file, tags the audio file with it and
// removes the temp file whatever the outcome
func (e *enricher) cover(ctx context.Context, req *DownloadRequest, filePath string) error {
	if !e.options.EmbedCover {
		return nil
	}

	track := req.Track()
	coverURL, err := e.source.CoverURL(ctx, track.Key)
	if err != nil {
		return fmt.Errorf("fetch cover url: %w", err)
	}
	if coverURL == "" {
		return nil
	}

	tmp, err := newTempFile(e.options.TempDir, "trackdl-cover-*")
	if err != nil {
		return fmt.Errorf("create temp cover: %w", err)
	}
	defer func() {
		if err := tmp.Cleanup(); err != nil {
			e.logger.Warn("Failed to remove temp cover", zap.String("path", tmp.path), zap.Error(err))
		}
	}()

	if _, err := e.transport.DownloadToFile(ctx, coverURL, tmp.path, nil); err != nil {
		return fmt.Errorf("download cover: %w", err)
	}

	e.tagMu.Lock()
	defer e.tagMu.Unlock()
	if err := e.tagger.WritePictureTag(filePath, tmp.path); err != nil {
		return fmt.Errorf("embed cover: %w", err)
	}
	return nil
}
