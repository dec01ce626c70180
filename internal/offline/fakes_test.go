package offline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/driveindex/driveindex/internal/aria2"
	"github.com/driveindex/driveindex/internal/testutil"
	"github.com/driveindex/driveindex/internal/upload"
)

type fakeDaemon struct {
	mu    sync.Mutex
	calls []string

	addGID     string
	addErr     error
	active     []aria2.Status
	activeErr  error
	waiting    []aria2.Status
	waitingErr error
	stopped    []aria2.Status
	files      map[string][]aria2.File
	controlErr error

	// onTellStopped runs before tellStopped answers, to interleave other work
	// with a sweep.
	onTellStopped func()
}

func (f *fakeDaemon) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDaemon) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDaemon) AddURI(_ context.Context, uri string) (string, error) {
	f.record("addUri:" + uri)
	return f.addGID, f.addErr
}

func (f *fakeDaemon) TellActive(_ context.Context, _ ...string) ([]aria2.Status, error) {
	f.record("tellActive")
	return f.active, f.activeErr
}

func (f *fakeDaemon) TellWaiting(_ context.Context, _, _ int, _ ...string) ([]aria2.Status, error) {
	f.record("tellWaiting")
	return f.waiting, f.waitingErr
}

func (f *fakeDaemon) TellStopped(_ context.Context, _, _ int, _ ...string) ([]aria2.Status, error) {
	f.record("tellStopped")
	if f.onTellStopped != nil {
		f.onTellStopped()
	}
	return f.stopped, nil
}

func (f *fakeDaemon) GetFiles(_ context.Context, gid string) ([]aria2.File, error) {
	f.record("getFiles:" + gid)
	files, ok := f.files[gid]
	if !ok {
		return nil, fmt.Errorf("aria2.getFiles %s: %w", gid, aria2.ErrNotFound)
	}
	return files, nil
}

func (f *fakeDaemon) ForcePause(_ context.Context, gid string) error {
	f.record("forcePause:" + gid)
	return f.controlErr
}

func (f *fakeDaemon) Unpause(_ context.Context, gid string) error {
	f.record("unpause:" + gid)
	return f.controlErr
}

func (f *fakeDaemon) ForceRemove(_ context.Context, gid string) error {
	f.record("forceRemove:" + gid)
	return f.controlErr
}

type fakeDispatcher struct {
	mu    sync.Mutex
	items []upload.Item
	err   error
}

func (d *fakeDispatcher) Enqueue(item upload.Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.items = append(d.items, item)
	return nil
}

func (d *fakeDispatcher) Items() []upload.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]upload.Item(nil), d.items...)
}

const testToken = "s3cret"

type testEnv struct {
	service    *Service
	store      *Store
	daemon     *fakeDaemon
	dispatcher *fakeDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tdb := testutil.NewTestDB(t)

	store := NewStore(tdb.Conn)
	daemon := &fakeDaemon{files: map[string][]aria2.File{}}
	dispatcher := &fakeDispatcher{}

	service := NewService(store, dispatcher, tdb.Logger)
	service.SetDaemon(daemon, testToken)

	return &testEnv{service: service, store: store, daemon: daemon, dispatcher: dispatcher}
}

func (e *testEnv) seed(t *testing.T, gid string, status Status) *Job {
	t.Helper()
	job, err := e.store.Create(context.Background(), &Job{
		GID:        gid,
		Name:       gid + ".bin",
		UploadPath: "/remote/" + gid,
		ClientID:   "client-" + gid,
		Status:     status,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", gid, err)
	}
	return job
}
