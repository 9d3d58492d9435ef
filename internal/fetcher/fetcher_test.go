package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	html    string
	htmlErr error
	shot    []byte
	closed  bool
}

func (s *fakeSession) HTML(ctx context.Context) (string, error)       { return s.html, s.htmlErr }
func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) { return s.shot, nil }
func (s *fakeSession) Close() error                                   { s.closed = true; return nil }

type fakeBrowser struct {
	session *fakeSession
	err     error
}

func (b *fakeBrowser) Open(ctx context.Context, url string) (Session, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}

type memBlobs struct {
	mu    sync.Mutex
	items map[string]string
	err   error
}

func (m *memBlobs) Put(ctx context.Context, path string, content []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.items == nil {
		m.items = map[string]string{}
	}
	m.items[path] = contentType
	return nil
}

func TestFetch_SnapshotsPage(t *testing.T) {
	session := &fakeSession{html: careersPage}
	blobs := &memBlobs{}
	f := New(&fakeBrowser{session: session}, blobs, logger.NewNop())

	page, err := f.Fetch(context.Background(), "https://jobs.example.com/careers")
	require.NoError(t, err)

	assert.Contains(t, page.Text, "[Product Manager](/jobs/pm-1)")
	assert.True(t, session.closed)
	assert.Equal(t, map[string]string{
		"job_extraction/jobs.example.com__careers.html": "text/html",
		"job_extraction/jobs.example.com__careers.md":   "text/markdown",
	}, blobs.items)
}

func TestFetch_SnapshotFailureIsNotFatal(t *testing.T) {
	f := New(&fakeBrowser{session: &fakeSession{html: careersPage}}, &memBlobs{err: errors.New("bucket gone")}, logger.NewNop())

	page, err := f.Fetch(context.Background(), "https://jobs.example.com/careers")
	require.NoError(t, err)
	assert.NotEmpty(t, page.Text)
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		browser *fakeBrowser
	}{
		{"navigation error", &fakeBrowser{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}},
		{"html error", &fakeBrowser{session: &fakeSession{htmlErr: errors.New("target closed")}}},
		{"empty page", &fakeBrowser{session: &fakeSession{html: "   "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := &memBlobs{}
			f := New(tt.browser, blobs, logger.NewNop())

			_, err := f.Fetch(context.Background(), "https://jobs.example.com/careers")
			assert.ErrorIs(t, err, domain.ErrFetchFailed)
			assert.Empty(t, blobs.items)
		})
	}
}

func TestFetchWithScreenshot(t *testing.T) {
	blobs := &memBlobs{}
	f := New(&fakeBrowser{session: &fakeSession{html: careersPage, shot: []byte("png")}}, blobs, logger.NewNop())

	page, err := f.FetchWithScreenshot(context.Background(), "https://jobs.example.com/careers/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), page.Screenshot)
	assert.Empty(t, blobs.items)
}

func TestFetch_NilBlobStore(t *testing.T) {
	f := New(&fakeBrowser{session: &fakeSession{html: careersPage}}, nil, logger.NewNop())

	_, err := f.Fetch(context.Background(), "https://jobs.example.com/careers")
	require.NoError(t, err)
}
