package engine

import (
	"context"
	"testing"
	"time"

	"photark/internal/job"
	"photark/internal/model"
	"photark/internal/storage"
	"photark/internal/testutil"
)

// harness wires an Engine over in-memory fakes with two registered
// backends, "alpha" and "beta".
type harness struct {
	engine *Engine
	docs   *testutil.MemoryStore
	mgr    *storage.Manager
	alpha  *testutil.MemoryProvider
	beta   *testutil.MemoryProvider
	clock  *testutil.StubClock
	base   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessAt(t, t.TempDir())
}

func newHarnessAt(t *testing.T, base string) *harness {
	t.Helper()

	docs := testutil.NewMemoryStore()
	clock := testutil.FixedClock()
	configs := storage.NewConfigStore(docs, clock, nil)
	mgr := storage.NewManager(configs, nil, clock)

	alpha := testutil.NewMemoryProvider("alpha")
	beta := testutil.NewMemoryProvider("beta")
	for _, p := range []*testutil.MemoryProvider{alpha, beta} {
		if err := docs.SaveBackendConfig(&model.BackendConfig{ID: p.ID(), Type: "memory", Enabled: true}); err != nil {
			t.Fatal(err)
		}
		mgr.Register(p)
	}

	eng := New(docs, mgr, job.NewStore(clock), Options{
		BaseDir: base,
		Clock:   clock,
		IDGen:   testutil.NewStubIDGenerator(),
	})

	return &harness{
		engine: eng,
		docs:   docs,
		mgr:    mgr,
		alpha:  alpha,
		beta:   beta,
		clock:  clock,
		base:   base,
	}
}

// addAlbum creates an album document.
func (h *harness) addAlbum(t *testing.T, id, alias, parentID, backend, storagePath string, level int) *model.Album {
	t.Helper()
	a := &model.Album{
		ID:          id,
		Name:        alias,
		Alias:       alias,
		Backend:     backend,
		StoragePath: storagePath,
		ParentID:    parentID,
		Level:       level,
	}
	if err := h.docs.CreateAlbum(a); err != nil {
		t.Fatal(err)
	}
	return a
}

// addPhoto creates a photo document and stores its bytes on the provider.
func (h *harness) addPhoto(t *testing.T, p *testutil.MemoryProvider, id, filename, albumID, folderPath, hash string, data []byte) *model.Photo {
	t.Helper()
	result, err := p.UploadFile(context.Background(), data, filename, "image/jpeg", folderPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	photo := &model.Photo{
		ID:           id,
		Filename:     filename,
		OriginalName: filename,
		MimeType:     "image/jpeg",
		Size:         int64(len(data)),
		AlbumID:      albumID,
		Hash:         hash,
		Storage: model.StorageDescriptor{
			Backend: p.ID(),
			FileID:  result.FileID,
			URL:     "/api/file/" + p.ID() + "/" + result.Path,
			Path:    result.Path,
		},
	}
	if err := h.docs.CreatePhoto(photo); err != nil {
		t.Fatal(err)
	}
	return photo
}

// waitJob polls until the job reaches a terminal status.
func (h *harness) waitJob(t *testing.T, id string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j := h.engine.Jobs().Get(id)
		if j == nil {
			t.Fatalf("job %s missing from store", id)
		}
		if j.Done() {
			return j
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Japan", "japan"},
		{"Summer Trip 2023", "summer-trip-2023"},
		{"  spaced  out  ", "spaced-out"},
		{"already-slugged", "already-slugged"},
		{"Ünïcode Füll", "n-code-f-ll"},
		{"---", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
