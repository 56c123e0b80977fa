package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// Manager writes tags into downloaded audio files (MP3 or FLAC)
type Manager struct {
	config *Config
}

// Config contains metadata configuration
type Config struct {
	EmbedArtwork  bool
	ArtworkSize   int    // max cover edge in pixels, 0 keeps the original
	LyricLanguage string // ISO-639-2 code used for ID3 USLT frames
}

// TrackTags contains the basic text tags for a track
type TrackTags struct {
	Title  string
	Artist string
	Album  string
}

// NewManager creates a new metadata manager
func NewManager(config *Config) *Manager {
	if config == nil {
		config = &Config{
			EmbedArtwork:  true,
			LyricLanguage: "eng",
		}
	}
	if len(config.LyricLanguage) != 3 {
		config.LyricLanguage = "eng"
	}
	return &Manager{
		config: config,
	}
}

func formatOf(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3", ".flac":
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", ext)
	}
}

// WriteBasicTags sets title, artist and album
func (m *Manager) WriteBasicTags(filePath string, tags TrackTags) error {
	ext, err := formatOf(filePath)
	if err != nil {
		return err
	}
	if ext == ".mp3" {
		return m.withMP3Tag(filePath, func(tag *id3v2.Tag) {
			if tags.Title != "" {
				tag.SetTitle(tags.Title)
			}
			if tags.Artist != "" {
				tag.SetArtist(tags.Artist)
			}
			if tags.Album != "" {
				tag.SetAlbum(tags.Album)
			}
		})
	}
	return m.withFLACComments(filePath, func(cmt *flacvorbis.MetaDataBlockVorbisComment) {
		setVorbisField(cmt, "TITLE", tags.Title)
		setVorbisField(cmt, "ARTIST", tags.Artist)
		setVorbisField(cmt, "ALBUM", tags.Album)
	})
}

// withMP3Tag opens the ID3v2 tag, applies fn and saves it as ID3v2.4
func (m *Manager) withMP3Tag(filePath string, fn func(tag *id3v2.Tag)) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	fn(tag)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 metadata: %w", err)
	}
	return nil
}

// withFLACComments rewrites the Vorbis comment block through fn
func (m *Manager) withFLACComments(filePath string, fn func(cmt *flacvorbis.MetaDataBlockVorbisComment)) error {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	var cmtBlock *flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			cmtBlock = block
			break
		}
	}

	var cmt *flacvorbis.MetaDataBlockVorbisComment
	if cmtBlock != nil {
		cmt, err = flacvorbis.ParseFromMetaDataBlock(*cmtBlock)
		if err != nil {
			cmt = flacvorbis.New()
		}
	} else {
		cmt = flacvorbis.New()
		cmtBlock = &flac.MetaDataBlock{Type: flac.VorbisComment}
		f.Meta = append(f.Meta, cmtBlock)
	}

	fn(cmt)

	res := cmt.Marshal()
	cmtBlock.Data = res.Data

	if err := f.Save(filePath); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

// setVorbisField replaces every value of key with value; empty values are skipped
func setVorbisField(cmt *flacvorbis.MetaDataBlockVorbisComment, key, value string) {
	if value == "" {
		return
	}
	removeVorbisField(cmt, key)
	cmt.Add(key, value)
}

// removeVorbisField drops every value stored under key
func removeVorbisField(cmt *flacvorbis.MetaDataBlockVorbisComment, key string) {
	prefix := strings.ToUpper(key) + "="
	kept := cmt.Comments[:0]
	for _, comment := range cmt.Comments {
		if !strings.HasPrefix(strings.ToUpper(comment), prefix) {
			kept = append(kept, comment)
		}
	}
	cmt.Comments = kept
}

// vorbisField returns the first value stored under key
func vorbisField(filePath, key string) (string, error) {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to parse FLAC file: %w", err)
	}
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return "", fmt.Errorf("failed to parse Vorbis comments: %w", err)
		}
		if values, err := cmt.Get(key); err == nil && len(values) > 0 {
			return values[0], nil
		}
		return "", nil
	}
	return "", nil
}

// FileExists checks if a file exists
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
