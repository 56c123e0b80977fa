package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// partialSuffix marks a file that is still being written
const partialSuffix = ".part"

// ProgressFunc receives bytes written so far and the expected total (0 if unknown)
type ProgressFunc func(written, total int64)

// Downloader streams remote content to local files
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a downloader; a nil client uses SharedTransferClient
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = SharedTransferClient()
	}
	return &Downloader{client: client}
}

// DownloadToFile streams url into destPath and returns the number of bytes written.
// Data goes to destPath+".part" first and is renamed on success. On any failure
// the partial file is removed and destPath is left untouched.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string, progress ProgressFunc) (written int64, err error) {
	if url == "" {
		return 0, fmt.Errorf("download URL cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	partialPath := destPath + partialSuffix
	out, err := os.Create(partialPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(partialPath)
		}
	}()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	bufferedWriter := bufio.NewWriterSize(out, 256*1024)
	buffer := make([]byte, 64*1024)

	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := bufferedWriter.Write(buffer[:n]); writeErr != nil {
				return written, fmt.Errorf("failed to write to file: %w", writeErr)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("error reading response: %w", readErr)
		}
	}

	if err := bufferedWriter.Flush(); err != nil {
		return written, fmt.Errorf("failed to flush buffer: %w", err)
	}

	if total > 0 && written < total {
		return written, fmt.Errorf("download incomplete: %d of %d bytes", written, total)
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Rename(partialPath, destPath); err != nil {
		return written, fmt.Errorf("failed to move file to final location: %w", err)
	}

	return written, nil
}
