package download

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/deemusic/trackdl/internal/errors"
	"github.com/deemusic/trackdl/internal/storage"
)

// DownloadRequest is a single user-initiated download. It is never mutated
// after NewRequest returns.
type DownloadRequest struct {
	id            string
	track         TrackRef
	quality       string
	dir           string
	qualitySuffix bool
	createdAt     time.Time
}

// RequestOption customises a DownloadRequest
type RequestOption func(*DownloadRequest)

// WithQuality preselects a quality label, skipping the chooser
func WithQuality(label string) RequestOption {
	return func(r *DownloadRequest) {
		r.quality = strings.TrimSpace(label)
	}
}

// WithoutQualitySuffix drops the "-{quality}" part of the file name
func WithoutQualitySuffix() RequestOption {
	return func(r *DownloadRequest) {
		r.qualitySuffix = false
	}
}

// NewRequest validates the track and builds a request writing under dir
func NewRequest(track TrackRef, dir string, opts ...RequestOption) (*DownloadRequest, error) {
	track.Name = storage.SanitizeInput(track.Name)
	track.Singer = storage.SanitizeInput(track.Singer)
	track.Album = storage.SanitizeInput(track.Album)
	if strings.TrimSpace(track.Name) == "" {
		return nil, apperrors.NewValidationError("track name cannot be empty")
	}
	if track.Key.Source == "" || track.Key.ID == "" {
		return nil, apperrors.NewValidationError("track source and id are required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, apperrors.NewValidationError("download directory cannot be empty")
	}

	track.Qualities = maps.Clone(track.Qualities)
	req := &DownloadRequest{
		id:            uuid.NewString(),
		track:         track,
		dir:           dir,
		qualitySuffix: true,
		createdAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(req)
	}

	if req.quality != "" && len(track.Qualities) > 0 {
		if info, ok := track.Qualities[req.quality]; !ok || !info.Available {
			return nil, apperrors.NewValidationError("quality " + req.quality + " is not available for this track")
		}
	}
	return req, nil
}

// ID returns the request's unique id
func (r *DownloadRequest) ID() string { return r.id }

// Track returns a copy of the track reference
func (r *DownloadRequest) Track() TrackRef {
	t := r.track
	t.Qualities = maps.Clone(r.track.Qualities)
	return t
}

// Quality returns the preselected label, "" when the user must choose
func (r *DownloadRequest) Quality() string { return r.quality }

// Dir returns the download directory
func (r *DownloadRequest) Dir() string { return r.dir }

// QualitySuffix reports whether the quality label is part of the file name
func (r *DownloadRequest) QualitySuffix() bool { return r.qualitySuffix }

// CreatedAt returns when the request was built
func (r *DownloadRequest) CreatedAt() time.Time { return r.createdAt }
