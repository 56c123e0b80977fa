package download

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/deemusic/trackdl/internal/errors"
)

// Known quality labels in display order
const (
	Quality128k      = "128k"
	Quality320k      = "320k"
	QualityFLAC      = "flac"
	QualityFLAC24bit = "flac24bit"
)

var qualityOrder = map[string]int{
	Quality128k:      0,
	Quality320k:      1,
	QualityFLAC:      2,
	QualityFLAC24bit: 3,
}

// QualityOption is one entry shown in the quality chooser
type QualityOption struct {
	Label string
	Size  int64
}

// SizeText renders the size for display, "-" when unknown
func (o QualityOption) SizeText() string {
	return formatSize(o.Size)
}

// String renders "label (size)"
func (o QualityOption) String() string {
	return fmt.Sprintf("%s (%s)", o.Label, o.SizeText())
}

// QualityStrategy lists the quality variants a track can be downloaded in
type QualityStrategy interface {
	Name() string
	Qualities(ctx context.Context) ([]QualityOption, error)
}

// PregatheredQualities reads the variants carried by the track itself
type PregatheredQualities struct {
	track TrackRef
}

func (p *PregatheredQualities) Name() string { return "pregathered" }

func (p *PregatheredQualities) Qualities(ctx context.Context) ([]QualityOption, error) {
	var options []QualityOption
	for label, info := range p.track.Qualities {
		if info.Available {
			options = append(options, QualityOption{Label: label, Size: info.Size})
		}
	}
	sortOptions(options)
	return options, nil
}

// SourceQualities asks the source service for the track's variants
type SourceQualities struct {
	source Source
	track  TrackRef
}

func (s *SourceQualities) Name() string { return "source" }

func (s *SourceQualities) Qualities(ctx context.Context) ([]QualityOption, error) {
	info, err := s.source.TrackInfo(ctx, s.track.Key)
	if err != nil {
		return nil, apperrors.NewNoQualitiesError(err)
	}
	if info == nil {
		return nil, nil
	}

	seen := make(map[string]bool, len(info.Qualities))
	var options []QualityOption
	for _, q := range info.Qualities {
		label := strings.TrimSpace(q.Type)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		options = append(options, QualityOption{Label: label, Size: q.Size})
	}
	sortOptions(options)
	return options, nil
}

// NewQualityResolver uses the track's own variants when any is available
// and falls back to querying the source otherwise
func NewQualityResolver(track TrackRef, source Source) QualityStrategy {
	for _, info := range track.Qualities {
		if info.Available {
			return &PregatheredQualities{track: track}
		}
	}
	return &SourceQualities{source: source, track: track}
}

// sortOptions orders known labels first, then unknown labels alphabetically
func sortOptions(options []QualityOption) {
	slices.SortStableFunc(options, func(a, b QualityOption) int {
		ai, aKnown := qualityOrder[a.Label]
		bi, bKnown := qualityOrder[b.Label]
		switch {
		case aKnown && bKnown:
			return ai - bi
		case aKnown:
			return -1
		case bKnown:
			return 1
		default:
			return strings.Compare(a.Label, b.Label)
		}
	})
}

func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	units := []string{"KB", "MB", "GB", "TB"}
	i := -1
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}
