package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/go-flac"
	"github.com/nfnt/resize"
)

const coverDescription = "Front Cover"

// WritePictureTag embeds the image at imagePath as the front cover.
// Existing cover pictures are replaced.
func (m *Manager) WritePictureTag(filePath, imagePath string) error {
	ext, err := formatOf(filePath)
	if err != nil {
		return err
	}
	if !m.config.EmbedArtwork {
		return nil
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read cover image: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("cover image is empty: %s", imagePath)
	}

	if m.config.ArtworkSize > 0 {
		if resized, err := ResizeCover(data, m.config.ArtworkSize); err == nil {
			data = resized
		}
	}
	mimeType := detectImageMIME(data)

	if ext == ".mp3" {
		return m.withMP3Tag(filePath, func(tag *id3v2.Tag) {
			tag.DeleteFrames(tag.CommonID("Attached picture"))
			tag.AddAttachedPicture(id3v2.PictureFrame{
				Encoding:    id3v2.EncodingUTF8,
				MimeType:    mimeType,
				PictureType: id3v2.PTFrontCover,
				Description: coverDescription,
				Picture:     data,
			})
		})
	}
	return writeFLACPicture(filePath, data, mimeType)
}

func writeFLACPicture(filePath string, data []byte, mimeType string) error {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	kept := f.Meta[:0]
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	f.Meta = append(kept, &flac.MetaDataBlock{
		Type: flac.Picture,
		Data: flacPictureBlock(data, mimeType),
	})

	if err := f.Save(filePath); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

// flacPictureBlock lays out a METADATA_BLOCK_PICTURE body (all integers big-endian)
func flacPictureBlock(data []byte, mimeType string) []byte {
	var width, height, depth uint32
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height, depth = uint32(cfg.Width), uint32(cfg.Height), 24
	}

	var buf bytes.Buffer
	put := func(v uint32) { _ = binary.Write(&buf, binary.BigEndian, v) }

	put(uint32(id3v2.PTFrontCover))
	put(uint32(len(mimeType)))
	buf.WriteString(mimeType)
	put(uint32(len(coverDescription)))
	buf.WriteString(coverDescription)
	put(width)
	put(height)
	put(depth)
	put(0) // indexed colours
	put(uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

// ResizeCover scales the image so its longer edge is at most maxEdge pixels.
// Smaller images are returned unchanged.
func ResizeCover(data []byte, maxEdge int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxEdge && height <= maxEdge {
		return data, nil
	}

	var resized image.Image
	if width > height {
		resized = resize.Resize(uint(maxEdge), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(maxEdge), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, resized)
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

func detectImageMIME(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return ct
	default:
		return "image/jpeg"
	}
}
