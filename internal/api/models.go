package api

import "fmt"

// TrackKey identifies a track on a music source
type TrackKey struct {
	Source string // source identifier, e.g. "kw", "wy"
	ID     string // track id within the source
}

// String returns "source:id"
func (k TrackKey) String() string {
	return fmt.Sprintf("%s:%s", k.Source, k.ID)
}

// QualityInfo is a single quality variant offered by the source
type QualityInfo struct {
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// TrackInfo is the response of the track info endpoint
type TrackInfo struct {
	Qualities []QualityInfo `json:"qualities"`
}

// LyricInfo holds the lyric and its optional translation, both in LRC format
type LyricInfo struct {
	Lyric  string `json:"lyric"`
	TLyric string `json:"tlyric"`
}

type urlResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Message string `json:"message"`
}
