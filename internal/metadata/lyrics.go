package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
)

const (
	lyricFrameName        = "Unsynchronised lyrics/text transcription"
	translationDescriptor = "translation"
	translationField      = "TRANSLATEDLYRICS"
)

// WriteLyricTag embeds lyric (and an optional translated lyric) into the file.
// Previously embedded lyrics are replaced.
func (m *Manager) WriteLyricTag(filePath, lyric, translation string) error {
	ext, err := formatOf(filePath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(lyric) == "" {
		return fmt.Errorf("lyric cannot be empty")
	}

	if ext == ".mp3" {
		return m.withMP3Tag(filePath, func(tag *id3v2.Tag) {
			tag.DeleteFrames(tag.CommonID(lyricFrameName))
			tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
				Encoding:          id3v2.EncodingUTF8,
				Language:          m.config.LyricLanguage,
				ContentDescriptor: "",
				Lyrics:            lyric,
			})
			if translation != "" {
				tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
					Encoding:          id3v2.EncodingUTF8,
					Language:          m.config.LyricLanguage,
					ContentDescriptor: translationDescriptor,
					Lyrics:            translation,
				})
			}
		})
	}

	return m.withFLACComments(filePath, func(cmt *flacvorbis.MetaDataBlockVorbisComment) {
		setVorbisField(cmt, "LYRICS", lyric)
		if translation == "" {
			removeVorbisField(cmt, translationField)
		} else {
			setVorbisField(cmt, translationField, translation)
		}
	})
}

// ReadLyricTag returns the embedded lyric, or "" when none is present
func (m *Manager) ReadLyricTag(filePath string) (string, error) {
	ext, err := formatOf(filePath)
	if err != nil {
		return "", err
	}

	if ext == ".flac" {
		return vorbisField(filePath, "LYRICS")
	}

	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return "", fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	for _, frame := range tag.GetFrames(tag.CommonID(lyricFrameName)) {
		uslf, ok := frame.(id3v2.UnsynchronisedLyricsFrame)
		if ok && uslf.ContentDescriptor != translationDescriptor {
			return uslf.Lyrics, nil
		}
	}
	return "", nil
}

// LRCPath returns the sidecar lyric path sharing the audio file's stem
func LRCPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".lrc"
}

// WriteLRCFile writes lyric next to the audio file and returns the sidecar path
func WriteLRCFile(audioPath, lyric string) (string, error) {
	if strings.TrimSpace(lyric) == "" {
		return "", fmt.Errorf("lyric cannot be empty")
	}

	lrcPath := LRCPath(audioPath)
	if err := os.WriteFile(lrcPath, []byte(lyric), 0644); err != nil {
		return "", fmt.Errorf("failed to write LRC file: %w", err)
	}
	return lrcPath, nil
}
