package download

import (
	"context"

	"github.com/deemusic/trackdl/internal/api"
	"github.com/deemusic/trackdl/internal/metadata"
	"github.com/deemusic/trackdl/internal/network"
	"github.com/deemusic/trackdl/internal/store"
)

// TrackRef identifies the track on the now playing view
type TrackRef struct {
	Name      string
	Singer    string
	Album     string
	Key       api.TrackKey
	Qualities map[string]QualityInfo // pregathered variants, may be empty
}

// QualityInfo describes one pregathered quality variant
type QualityInfo struct {
	Size      int64
	Available bool
}

// State is a workflow step
type State int

const (
	StateIdle State = iota
	StateQualitySelecting
	StateURLResolving
	StateWriting
	StateEnriching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQualitySelecting:
		return "quality_selecting"
	case StateURLResolving:
		return "url_resolving"
	case StateWriting:
		return "writing"
	case StateEnriching:
		return "enriching"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Status is the terminal result of a workflow
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusNoOp      Status = "no-op"
)

// DownloadOutcome is produced once per Run
type DownloadOutcome struct {
	RequestID string
	Status    Status
	Quality   string
	FilePath  string
	LyricPath string
	Bytes     int64
	Warnings  []string
	Err       error
}

// Source is the music source service
type Source interface {
	TrackInfo(ctx context.Context, track api.TrackKey) (*api.TrackInfo, error)
	ResolveURL(ctx context.Context, track api.TrackKey, quality string, refresh bool) (string, error)
	Lyric(ctx context.Context, track api.TrackKey) (*api.LyricInfo, error)
	CoverURL(ctx context.Context, track api.TrackKey) (string, error)
}

// Transport streams a URL to a file
type Transport interface {
	DownloadToFile(ctx context.Context, url, destPath string, progress network.ProgressFunc) (int64, error)
}

// Tagger embeds sidecar metadata into audio files
type Tagger interface {
	WriteLyricTag(filePath, lyric, translation string) error
	WritePictureTag(filePath, imagePath string) error
	WriteBasicTags(filePath string, tags metadata.TrackTags) error
}

// PermissionGate is queried once before anything is written
type PermissionGate interface {
	RequestStoragePermission(ctx context.Context) (bool, error)
}

// Chooser presents options and waits for a selection. ok is false when the
// user dismissed the prompt.
type Chooser interface {
	Choose(ctx context.Context, title, message string, options []string) (index int, ok bool, err error)
}

// Notifier receives fire-and-forget user feedback
type Notifier interface {
	Notify(n Notice)
	Progress(p ProgressUpdate)
}

// Recorder persists finished workflows
type Recorder interface {
	Record(ctx context.Context, entry *store.HistoryEntry) error
}
