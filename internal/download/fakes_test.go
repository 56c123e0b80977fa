package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/deemusic/trackdl/internal/api"
	"github.com/deemusic/trackdl/internal/metadata"
	"github.com/deemusic/trackdl/internal/network"
	"github.com/deemusic/trackdl/internal/store"
)

const (
	audioURL = "https://cdn.example.com/audio"
	coverURL = "https://img.example.com/cover.jpg"
)

type fakeSource struct {
	info     *api.TrackInfo
	infoErr  error
	url      string
	urlErr   error
	lyric    *api.LyricInfo
	lyricErr error
	cover    string
	coverErr error

	infoCalls    int32
	resolveCalls int32
	lastQuality  atomic.Value
	lastRefresh  atomic.Bool
}

func (f *fakeSource) TrackInfo(ctx context.Context, track api.TrackKey) (*api.TrackInfo, error) {
	atomic.AddInt32(&f.infoCalls, 1)
	return f.info, f.infoErr
}

func (f *fakeSource) ResolveURL(ctx context.Context, track api.TrackKey, quality string, refresh bool) (string, error) {
	atomic.AddInt32(&f.resolveCalls, 1)
	f.lastQuality.Store(quality)
	f.lastRefresh.Store(refresh)
	return f.url, f.urlErr
}

func (f *fakeSource) Lyric(ctx context.Context, track api.TrackKey) (*api.LyricInfo, error) {
	return f.lyric, f.lyricErr
}

func (f *fakeSource) CoverURL(ctx context.Context, track api.TrackKey) (string, error) {
	return f.cover, f.coverErr
}

type fakeTransport struct {
	mu       sync.Mutex
	written  []string
	failures map[string]error
	started  chan struct{} // closed when the first audio write begins
	block    chan struct{} // audio writes wait on this when set
	once     sync.Once
}

func (f *fakeTransport) DownloadToFile(ctx context.Context, url, destPath string, progress network.ProgressFunc) (int64, error) {
	if err := f.failures[url]; err != nil {
		return 0, err
	}
	if url == audioURL {
		if f.started != nil {
			f.once.Do(func() { close(f.started) })
		}
		if f.block != nil {
			select {
			case <-f.block:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, err
	}
	data := []byte("payload for " + url)
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return 0, err
	}
	if progress != nil {
		progress(int64(len(data)/2), int64(len(data)))
		progress(int64(len(data)), int64(len(data)))
	}

	f.mu.Lock()
	f.written = append(f.written, destPath)
	f.mu.Unlock()
	return int64(len(data)), nil
}

func (f *fakeTransport) audioWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.written {
		if strings.HasSuffix(p, ".mp3") || strings.HasSuffix(p, ".flac") {
			n++
		}
	}
	return n
}

type fakeTagger struct {
	mu           sync.Mutex
	lyricErr     error
	pictureErr   error
	lyrics       []string
	translations []string
	pictures     []string
	imageExisted bool
	basicTags    []metadata.TrackTags
}

func (f *fakeTagger) WriteLyricTag(filePath, lyric, translation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lyrics = append(f.lyrics, lyric)
	f.translations = append(f.translations, translation)
	return f.lyricErr
}

func (f *fakeTagger) WritePictureTag(filePath, imagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pictures = append(f.pictures, imagePath)
	_, err := os.Stat(imagePath)
	f.imageExisted = err == nil
	return f.pictureErr
}

func (f *fakeTagger) WriteBasicTags(filePath string, tags metadata.TrackTags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.basicTags = append(f.basicTags, tags)
	return nil
}

type fakeGate struct {
	granted bool
	err     error
}

func (f *fakeGate) RequestStoragePermission(ctx context.Context) (bool, error) {
	return f.granted, f.err
}

type fakeChooser struct {
	index   int
	ok      bool
	err     error
	calls   int32
	options []string
}

func (f *fakeChooser) Choose(ctx context.Context, title, message string, options []string) (int, bool, error) {
	atomic.AddInt32(&f.calls, 1)
	f.options = options
	return f.index, f.ok, f.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	notices  []Notice
	progress []ProgressUpdate
}

func (r *recordingNotifier) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) Progress(p ProgressUpdate) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
}

func (r *recordingNotifier) byLevel(level NoticeLevel) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.notices {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []*store.HistoryEntry
}

func (f *fakeRecorder) Record(ctx context.Context, entry *store.HistoryEntry) error {
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	f.mu.Unlock()
	return nil
}
