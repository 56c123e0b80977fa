package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryEntry is one finished download workflow
type HistoryEntry struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"request_id"`
	Source       string    `json:"source"`
	TrackID      string    `json:"track_id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	Quality      string    `json:"quality"`
	Status       string    `json:"status"` // success, failure, cancelled, no-op
	FilePath     string    `json:"file_path,omitempty"`
	LyricPath    string    `json:"lyric_path,omitempty"`
	FileSize     int64     `json:"file_size"`
	ErrorType    string    `json:"error_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// HistoryStore persists download outcomes
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a new HistoryStore
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record inserts an entry and sets its ID
func (hs *HistoryStore) Record(ctx context.Context, entry *HistoryEntry) error {
	if entry.RequestID == "" || entry.Status == "" {
		return fmt.Errorf("history entry needs a request id and status")
	}
	if entry.DownloadedAt.IsZero() {
		entry.DownloadedAt = time.Now()
	}

	var warnings sql.NullString
	if len(entry.Warnings) > 0 {
		data, err := json.Marshal(entry.Warnings)
		if err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
		warnings = sql.NullString{String: string(data), Valid: true}
	}

	res, err := hs.db.ExecContext(ctx, `
		INSERT INTO download_history (
			request_id, source, track_id, title, artist, album, quality,
			status, file_path, lyric_path, file_size, error_type,
			error_message, warnings, downloaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.RequestID,
		entry.Source,
		entry.TrackID,
		entry.Title,
		entry.Artist,
		entry.Album,
		entry.Quality,
		entry.Status,
		entry.FilePath,
		entry.LyricPath,
		entry.FileSize,
		entry.ErrorType,
		entry.ErrorMessage,
		warnings,
		entry.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read history id: %w", err)
	}
	entry.ID = id
	return nil
}

// Recent returns up to limit entries, newest first
func (hs *HistoryStore) Recent(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return hs.query(ctx, `
		SELECT id, request_id, source, track_id, title, artist, album, quality,
		       status, file_path, lyric_path, file_size, error_type,
		       error_message, warnings, downloaded_at
		FROM download_history
		ORDER BY downloaded_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// ForTrack returns every entry recorded for a track, newest first
func (hs *HistoryStore) ForTrack(ctx context.Context, source, trackID string) ([]*HistoryEntry, error) {
	return hs.query(ctx, `
		SELECT id, request_id, source, track_id, title, artist, album, quality,
		       status, file_path, lyric_path, file_size, error_type,
		       error_message, warnings, downloaded_at
		FROM download_history
		WHERE source = ? AND track_id = ?
		ORDER BY downloaded_at DESC, id DESC
	`, source, trackID)
}

// CountByStatus returns the number of entries per status
func (hs *HistoryStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := hs.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM download_history GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Clear deletes all entries
func (hs *HistoryStore) Clear(ctx context.Context) error {
	if _, err := hs.db.ExecContext(ctx, "DELETE FROM download_history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (hs *HistoryStore) query(ctx context.Context, query string, args ...any) ([]*HistoryEntry, error) {
	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*HistoryEntry, error) {
	var (
		entry                                HistoryEntry
		artist, album, quality               sql.NullString
		filePath, lyricPath, errType, errMsg sql.NullString
		warnings                             sql.NullString
	)

	err := rows.Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.Source,
		&entry.TrackID,
		&entry.Title,
		&artist,
		&album,
		&quality,
		&entry.Status,
		&filePath,
		&lyricPath,
		&entry.FileSize,
		&errType,
		&errMsg,
		&warnings,
		&entry.DownloadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	entry.Artist = artist.String
	entry.Album = album.String
	entry.Quality = quality.String
	entry.FilePath = filePath.String
	entry.LyricPath = lyricPath.String
	entry.ErrorType = errType.String
	entry.ErrorMessage = errMsg.String
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &entry.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}
	return &entry, nil
}
