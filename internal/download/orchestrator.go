package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/deemusic/trackdl/internal/errors"
	"github.com/deemusic/trackdl/internal/monitoring"
	"github.com/deemusic/trackdl/internal/storage"
	"github.com/deemusic/trackdl/internal/store"
)

const (
	chooserTitle   = "Download"
	msgNoQualities = "no qualities available"
	msgComplete    = "download complete"
	msgFailed      = "download failed"
)

// Options toggles the sidecar steps
type Options struct {
	SaveLRCFile        bool
	EmbedLyric         bool
	IncludeTranslation bool
	EmbedCover         bool
	TempDir            string // "" uses os.TempDir
}

// DefaultOptions matches the config defaults
func DefaultOptions() Options {
	return Options{
		SaveLRCFile: true,
		EmbedLyric:  true,
		EmbedCover:  true,
	}
}

// Dependencies are the collaborators of an Orchestrator. Recorder is optional.
type Dependencies struct {
	Source    Source
	Transport Transport
	Tagger    Tagger
	Gate      PermissionGate
	Chooser   Chooser
	Notifier  Notifier
	Recorder  Recorder
}

// Orchestrator runs the download workflow:
// quality selection, URL resolution, file write and sidecar enrichment
type Orchestrator struct {
	deps     Dependencies
	enricher *enricher
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]string // destination path -> request id
}

// NewOrchestrator wires the workflow; logger may be nil
func NewOrchestrator(deps Dependencies, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("source is required")
	case deps.Transport == nil:
		return nil, fmt.Errorf("transport is required")
	case deps.Tagger == nil:
		return nil, fmt.Errorf("tagger is required")
	case deps.Gate == nil:
		return nil, fmt.Errorf("permission gate is required")
	case deps.Chooser == nil:
		return nil, fmt.Errorf("chooser is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(logger)
	}

	return &Orchestrator{
		deps: deps,
		enricher: &enricher{
			source:    deps.Source,
			transport: deps.Transport,
			tagger:    deps.Tagger,
			notifier:  deps.Notifier,
			options:   opts,
			logger:    logger,
		},
		logger:   logger,
		inFlight: make(map[string]string),
	}, nil
}

// run carries per-workflow state
type run struct {
	req     *DownloadRequest
	state   State
	quality string
	logger  *zap.Logger
	started time.Time
}

func (r *run) enter(s State) {
	r.logger.Debug("State transition",
		zap.String("from", r.state.String()),
		zap.String("to", s.String()))
	r.state = s
}

// Run executes one download and returns its outcome. It never returns nil.
func (o *Orchestrator) Run(ctx context.Context, req *DownloadRequest) *DownloadOutcome {
	track := req.Track()
	r := &run{
		req:     req,
		state:   StateIdle,
		logger:  monitoring.RequestLogger(o.logger, req.ID(), track.Key.String()),
		started: time.Now(),
	}

	outcome := o.execute(ctx, r)
	outcome.RequestID = req.ID()
	outcome.Quality = r.quality
	r.enter(StateDone)

	o.report(r, outcome)
	o.record(ctx, r, outcome)
	return outcome
}

func (o *Orchestrator) execute(ctx context.Context, r *run) *DownloadOutcome {
	req := r.req
	track := req.Track()

	granted, err := o.deps.Gate.RequestStoragePermission(ctx)
	if err != nil {
		return o.abort(r, apperrors.NewPermissionDeniedError(err))
	}
	if !granted {
		return o.abort(r, apperrors.NewPermissionDeniedError(nil))
	}

	r.enter(StateQualitySelecting)
	quality, outcome := o.selectQuality(ctx, r, track)
	if outcome != nil {
		return outcome
	}
	r.quality = quality

	destPath := BuildPath(req.Dir(), track, quality, req.QualitySuffix())
	if err := storage.ContainedPath(req.Dir(), destPath); err != nil {
		return o.abort(r, apperrors.NewValidationError(err.Error()))
	}
	if !o.acquire(destPath, req.ID()) {
		return o.abort(r, apperrors.NewInProgressError(destPath))
	}
	defer o.release(destPath)

	r.enter(StateURLResolving)
	url, err := o.deps.Source.ResolveURL(ctx, track.Key, quality, true)
	if err != nil {
		return o.abort(r, asWorkflowError(ctx, err, "failed to resolve download link"))
	}
	if url == "" {
		return o.abort(r, apperrors.NewURLUnavailableError())
	}

	r.enter(StateWriting)
	monitoring.RecordDownloadStart()
	throttle := newProgressThrottle(req.ID(), o.deps.Notifier)
	written, err := o.deps.Transport.DownloadToFile(ctx, url, destPath, throttle.report)
	if err != nil {
		if ctx.Err() != nil {
			return o.abort(r, apperrors.NewCancelledError())
		}
		return o.abort(r, apperrors.NewWriteFailedError(destPath, err))
	}
	monitoring.RecordDownloadComplete(quality, time.Since(r.started), written)
	r.logger.Info("Audio written", zap.String("path", destPath), zap.Int64("bytes", written))

	r.enter(StateEnriching)
	enriched := o.enricher.run(ctx, req, destPath)

	return &DownloadOutcome{
		Status:    StatusSuccess,
		FilePath:  destPath,
		LyricPath: enriched.lyricPath,
		Bytes:     written,
		Warnings:  enriched.warnings,
	}
}

// selectQuality returns the chosen label, or a terminal outcome
func (o *Orchestrator) selectQuality(ctx context.Context, r *run, track TrackRef) (string, *DownloadOutcome) {
	strategy := NewQualityResolver(track, o.deps.Source)
	r.logger.Debug("Listing qualities", zap.String("strategy", strategy.Name()))

	options, err := strategy.Qualities(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", o.abort(r, apperrors.NewCancelledError())
		}
		if apperrors.GetErrorType(err) != apperrors.ErrTypeNoQualities {
			err = apperrors.NewNoQualitiesError(err)
		}
		return "", o.abort(r, err)
	}
	if len(options) == 0 {
		r.logger.Info("No qualities offered")
		return "", &DownloadOutcome{Status: StatusNoOp, Err: apperrors.NewNoQualitiesError(nil)}
	}

	if preset := r.req.Quality(); preset != "" {
		for _, opt := range options {
			if opt.Label == preset {
				return preset, nil
			}
		}
		return "", o.abort(r, apperrors.NewValidationError(fmt.Sprintf("quality %s is not offered", preset)))
	}

	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = opt.String()
	}
	message := fmt.Sprintf("%s - %s", track.Name, track.Singer)

	index, ok, err := o.deps.Chooser.Choose(ctx, chooserTitle, message, labels)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return "", o.abort(r, apperrors.NewCancelledError())
		}
		return "", o.abort(r, fmt.Errorf("quality prompt failed: %w", err))
	}
	if !ok {
		return "", o.abort(r, apperrors.NewCancelledError())
	}
	if index < 0 || index >= len(options) {
		return "", o.abort(r, apperrors.NewValidationError(fmt.Sprintf("chosen option %d out of range", index)))
	}
	return options[index].Label, nil
}

func (o *Orchestrator) abort(r *run, err error) *DownloadOutcome {
	status := StatusFailure
	if apperrors.IsCancelled(err) {
		status = StatusCancelled
	}
	return &DownloadOutcome{Status: status, Err: err}
}

// report logs the outcome, emits metrics and the single user-visible notice
func (o *Orchestrator) report(r *run, outcome *DownloadOutcome) {
	id := r.req.ID()
	switch outcome.Status {
	case StatusSuccess:
		r.logger.Info("Download complete",
			zap.String("path", outcome.FilePath),
			zap.Strings("warnings", outcome.Warnings))
		o.deps.Notifier.Notify(Notice{RequestID: id, Level: LevelInfo, Message: msgComplete})

	case StatusNoOp:
		o.deps.Notifier.Notify(Notice{RequestID: id, Level: LevelInfo, Message: msgNoQualities})

	case StatusCancelled:
		r.logger.Info("Download cancelled")
		monitoring.RecordDownloadAborted(r.quality, string(apperrors.ErrTypeCancelled))

	case StatusFailure:
		errType := apperrors.GetErrorType(outcome.Err)
		r.logger.Error("Download failed",
			zap.String("error_type", string(errType)),
			zap.Error(outcome.Err))
		monitoring.RecordDownloadAborted(r.quality, string(errType))
		o.deps.Notifier.Notify(Notice{RequestID: id, Level: LevelError, Message: failureMessage(outcome.Err)})
	}
}

func (o *Orchestrator) record(ctx context.Context, r *run, outcome *DownloadOutcome) {
	if o.deps.Recorder == nil {
		return
	}
	track := r.req.Track()
	entry := &store.HistoryEntry{
		RequestID: r.req.ID(),
		Source:    track.Key.Source,
		TrackID:   track.Key.ID,
		Title:     track.Name,
		Artist:    track.Singer,
		Album:     track.Album,
		Quality:   r.quality,
		Status:    string(outcome.Status),
		FilePath:  outcome.FilePath,
		LyricPath: outcome.LyricPath,
		FileSize:  outcome.Bytes,
		Warnings:  outcome.Warnings,
	}
	if outcome.Err != nil {
		entry.ErrorType = string(apperrors.GetErrorType(outcome.Err))
		entry.ErrorMessage = outcome.Err.Error()
	}

	// the workflow context may already be cancelled
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.deps.Recorder.Record(recCtx, entry); err != nil {
		r.logger.Warn("Failed to record history", zap.Error(err))
	}
}

func (o *Orchestrator) acquire(path, requestID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[path]; busy {
		return false
	}
	o.inFlight[path] = requestID
	return true
}

func (o *Orchestrator) release(path string) {
	o.mu.Lock()
	delete(o.inFlight, path)
	o.mu.Unlock()
}

// InFlight returns the number of destinations currently being written
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inFlight)
}

// asWorkflowError keeps AppErrors and wraps anything else as a network failure
func asWorkflowError(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return apperrors.NewCancelledError()
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewNetworkError(msg, err)
}

func failureMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrTypeURLUnavailable:
			return appErr.Message
		case apperrors.ErrTypeWriteFailed:
			if appErr.Cause != nil {
				return fmt.Sprintf("%s: %v", msgFailed, appErr.Cause)
			}
		}
		return fmt.Sprintf("%s: %s", msgFailed, appErr.Message)
	}
	return fmt.Sprintf("%s: %v", msgFailed, err)
}
