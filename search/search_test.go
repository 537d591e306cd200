package search

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/localfs"
)

type fakeProvider struct {
	delay   time.Duration
	hits    []corefs.SearchHit
	failErr error
}

func (p *fakeProvider) Run(ctx context.Context, query corefs.Query, emit func([]corefs.SearchHit), onDone func(error)) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			onDone(ctx.Err())
			return
		}
	}
	if len(p.hits) > 0 {
		emit(p.hits)
	}
	onDone(p.failErr)
}

type collector struct {
	mu   sync.Mutex
	hits []corefs.SearchHit
}

func (c *collector) add(hits []corefs.SearchHit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = append(c.hits, hits...)
}

func (c *collector) all() []corefs.SearchHit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]corefs.SearchHit, len(c.hits))
	copy(out, c.hits)
	return out
}

func TestEngineDedupesHitsByURIAcrossProviders(t *testing.T) {
	shared := corefs.SearchHit{URI: corefs.ParseLocation("/tmp/a.txt")}
	other := corefs.SearchHit{URI: corefs.ParseLocation("/tmp/b.txt")}

	p1 := &fakeProvider{hits: []corefs.SearchHit{shared}}
	p2 := &fakeProvider{hits: []corefs.SearchHit{shared, other}}

	e := New(p1, p2)
	col := &collector{}
	done := make(chan struct{}, 1)
	var gotStatus corefs.RunStatus
	var gotErr error
	e.OnHits(col.add)
	e.OnComplete(func(status corefs.RunStatus, err error) {
		gotStatus = status
		gotErr = err
		done <- struct{}{}
	})

	e.Start(context.Background(), corefs.NewQuery("x"))
	<-done

	assert.Equal(t, corefs.StatusNormal, gotStatus)
	assert.NoError(t, gotErr)
	assert.Len(t, col.all(), 2)
}

func TestEngineSurfacesErrorOnlyWhenAllProvidersFail(t *testing.T) {
	p1 := &fakeProvider{failErr: assert.AnError}
	p2 := &fakeProvider{}

	e := New(p1, p2)
	done := make(chan error, 1)
	e.OnComplete(func(status corefs.RunStatus, err error) { done <- err })
	e.Start(context.Background(), corefs.NewQuery(""))

	err := <-done
	assert.NoError(t, err, "one of two providers succeeded, so no aggregate error")
}

func TestEngineSurfacesErrorWhenEveryProviderFails(t *testing.T) {
	p1 := &fakeProvider{failErr: assert.AnError}
	p2 := &fakeProvider{failErr: assert.AnError}

	e := New(p1, p2)
	done := make(chan error, 1)
	e.OnComplete(func(status corefs.RunStatus, err error) { done <- err })
	e.Start(context.Background(), corefs.NewQuery(""))

	err := <-done
	assert.Error(t, err)
}

func TestEngineSecondStartMarksFirstRunAsRestarting(t *testing.T) {
	p1 := &fakeProvider{delay: 50 * time.Millisecond}
	e := New(p1)

	var statuses []corefs.RunStatus
	var mu sync.Mutex
	allDone := make(chan struct{})
	var count int
	e.OnComplete(func(status corefs.RunStatus, err error) {
		mu.Lock()
		statuses = append(statuses, status)
		count++
		if count == 2 {
			close(allDone)
		}
		mu.Unlock()
	})

	e.Start(context.Background(), corefs.NewQuery("first"))
	time.Sleep(5 * time.Millisecond)
	e.Start(context.Background(), corefs.NewQuery("second"))

	select {
	case <-allDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for both runs to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 2)
	assert.Contains(t, statuses, corefs.StatusRestarting)
	assert.Contains(t, statuses, corefs.StatusNormal)
}

func TestEngineWithNoProvidersCompletesImmediately(t *testing.T) {
	e := New()
	done := make(chan corefs.RunStatus, 1)
	e.OnComplete(func(status corefs.RunStatus, err error) { done <- status })
	e.Start(context.Background(), corefs.NewQuery("anything"))
	select {
	case status := <-done:
		assert.Equal(t, corefs.StatusNormal, status)
	case <-time.After(time.Second):
		t.Fatal("zero-provider run never completed")
	}
}

func TestFilesystemProviderMatchesNameRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apple.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "apricot.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "banana.txt"), []byte("x"), 0o644))

	backend := localfs.New()
	p := NewFilesystemProvider(backend)
	q := corefs.NewQuery("ap").WithRoot(corefs.ParseLocation(dir))
	q.Recursive = true

	var hits []corefs.SearchHit
	done := make(chan error, 1)
	p.Run(context.Background(), q, func(h []corefs.SearchHit) { hits = append(hits, h...) }, func(err error) { done <- err })
	require.NoError(t, <-done)

	var names []string
	for _, h := range hits {
		names = append(names, h.URI.Base())
	}
	assert.ElementsMatch(t, []string{"apple.txt", "apricot.txt"}, names)
}

func TestFilesystemProviderWithoutRootMatchesNothing(t *testing.T) {
	backend := localfs.New()
	p := NewFilesystemProvider(backend)
	var hits []corefs.SearchHit
	done := make(chan error, 1)
	p.Run(context.Background(), corefs.NewQuery("x"), func(h []corefs.SearchHit) { hits = append(hits, h...) }, func(err error) { done <- err })
	require.NoError(t, <-done)
	assert.Empty(t, hits)
}

func TestIndexedProviderFindsByTokenIntersection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, err := OpenIndexedProvider(dbPath)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Index(corefs.ParseLocation("/docs/report.pdf"), "report.pdf", "quarterly results and figures", "application/pdf", time.Now(), time.Now(), time.Now()))
	require.NoError(t, p.Index(corefs.ParseLocation("/docs/photo.jpg"), "photo.jpg", "", "image/jpeg", time.Now(), time.Now(), time.Now()))

	var hits []corefs.SearchHit
	done := make(chan error, 1)
	p.Run(context.Background(), corefs.NewQuery("report"), func(h []corefs.SearchHit) { hits = append(hits, h...) }, func(err error) { done <- err })
	require.NoError(t, <-done)

	require.Len(t, hits, 1)
	assert.Equal(t, "/docs/report.pdf", hits[0].URI.Path)
}

func TestIndexedProviderSnippetEscapesMarkup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, err := OpenIndexedProvider(dbPath)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Index(corefs.ParseLocation("/docs/note.txt"), "note.txt", "see <script>alert(1)</script> result", "text/plain", time.Now(), time.Now(), time.Now()))

	var hits []corefs.SearchHit
	done := make(chan error, 1)
	p.Run(context.Background(), corefs.NewQuery("result"), func(h []corefs.SearchHit) { hits = append(hits, h...) }, func(err error) { done <- err })
	require.NoError(t, <-done)

	require.Len(t, hits, 1)
	assert.NotContains(t, hits[0].Snippet, "<script>")
	assert.Contains(t, hits[0].Snippet, snippetStart)
}

func TestRecentsProviderReadsXbelAndFiltersByName(t *testing.T) {
	dir := t.TempDir()
	xbelPath := filepath.Join(dir, "recently-used.xbel")
	content := `<?xml version="1.0"?>
<xbel version="1.0">
  <bookmark href="file:///tmp/alpha.txt" added="2024-01-01T00:00:00Z" modified="2024-01-02T00:00:00Z" visited="2024-01-03T00:00:00Z">
    <info><metadata><mime-type type="text/plain"/></metadata></info>
  </bookmark>
  <bookmark href="file:///tmp/beta.txt" added="2024-01-01T00:00:00Z" modified="2024-01-02T00:00:00Z" visited="2024-01-03T00:00:00Z">
    <info><metadata><mime-type type="text/plain"/></metadata></info>
  </bookmark>
</xbel>`
	require.NoError(t, os.WriteFile(xbelPath, []byte(content), 0o644))

	p := &RecentsProvider{Path: xbelPath}
	var hits []corefs.SearchHit
	done := make(chan error, 1)
	p.Run(context.Background(), corefs.NewQuery("alpha"), func(h []corefs.SearchHit) { hits = append(hits, h...) }, func(err error) { done <- err })
	require.NoError(t, <-done)

	require.Len(t, hits, 1)
	assert.Equal(t, "alpha.txt", hits[0].URI.Base())
}

func TestRecentsProviderMissingFileYieldsNoError(t *testing.T) {
	p := &RecentsProvider{Path: filepath.Join(t.TempDir(), "does-not-exist.xbel")}
	done := make(chan error, 1)
	p.Run(context.Background(), corefs.NewQuery("x"), func(h []corefs.SearchHit) {}, func(err error) { done <- err })
	require.NoError(t, <-done)
}
