package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/filedesk/filecore/config"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/localfs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/registry"
	"github.com/filedesk/filecore/task"
)

const configReloadInterval = 2 * time.Second

// commandTimeout bounds how long a single CLI invocation waits for its
// underlying task to finish, so a hung backend can't hang the process
// forever.
const commandTimeout = 30 * time.Second

// harness bundles the collaborators every subcommand needs to exercise
// one FileNode operation synchronously: a real local backend, a registry
// to produce identity-stable nodes from it, and a pool/loop pair to run
// and receive task continuations on, the same trio nodetasks_test.go's
// testSetup constructs for its own unit tests.
type harness struct {
	backend *localfs.Client
	reg     *registry.Registry
	pool    *task.Pool
	loop    *task.Loop
	prefs   *config.Watcher
}

// prefsPath resolves the preferences file under the user's config
// directory (the thumbnail cache uses the user's cache directory instead);
// missing is not an error.
func prefsPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "filecorecli", "prefs.toml")
}

func newHarness(name string) *harness {
	backend := localfs.New()
	reg := node.NewRegistry(backend)

	prefs, err := config.NewWatcher(prefsPath())
	width := config.DefaultTaskLimit
	if err == nil {
		width = prefs.Current().TaskLimit
	}

	pool := task.GetPool("filecorecli-"+name, width)
	loop := task.GetLoop("filecorecli-" + name)

	h := &harness{backend: backend, reg: reg, pool: pool, loop: loop, prefs: prefs}
	if prefs != nil {
		go prefs.Run(configReloadInterval)
		go h.followTaskLimit()
	}
	return h
}

// followTaskLimit resizes the pool whenever task-limit changes in the
// preferences file, so a running invocation honors an edit made while it's
// still working through a large operation.
func (h *harness) followTaskLimit() {
	for p := range h.prefs.Subscribe() {
		h.pool.Resize(p.TaskLimit)
	}
}

func (h *harness) close() {
	if h.prefs != nil {
		h.prefs.Stop()
	}
	h.loop.Close()
}

func (h *harness) nodeFor(path string) *node.FileNode {
	return h.reg.GetOrCreate(corefs.ParseLocation(path)).(*node.FileNode)
}

// withTimeout runs a continuation-style call and blocks until either the
// continuation fires or commandTimeout elapses, returning the latter as a
// KindCancelled error so every subcommand's Run can treat it uniformly.
func withTimeout(submit func(ctx context.Context, done func(error))) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	submit(ctx, func(err error) { errCh <- err })

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return corefs.Wrap(corefs.KindCancelled, ctx.Err())
	}
}
