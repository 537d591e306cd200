package search

import (
	"context"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
)

// modelBatchSize mirrors filesystemBatchSize: the directory model is
// already in memory, but hits are still delivered in bounded batches so a
// huge folder doesn't produce one giant slice on the hot path.
const modelBatchSize = 500

// ModelProvider answers a query against a directory already held open in
// a view (its children already enumerated into FileNodes), rather than
// re-walking the filesystem. This is the "search as you type in an
// already-open folder" path spec.md §4.I calls out as distinct from the
// recursive FilesystemProvider: the caller supplies the node slice once
// per keystroke instead of this provider re-enumerating it.
type ModelProvider struct {
	Nodes func() []*node.FileNode
}

// NewModelProvider returns a provider that calls nodes on every Run to
// fetch the current child set, so a caller can swap the backing view
// between searches without constructing a new provider each time.
func NewModelProvider(nodes func() []*node.FileNode) *ModelProvider {
	return &ModelProvider{Nodes: nodes}
}

// Run implements Provider. Only nodes whose info is already cached are
// considered: an uncached node means its query_info is still in flight,
// and this provider does not start new I/O, per the "model" label — the
// filesystem or indexed providers account for names this one can't yet
// see.
func (p *ModelProvider) Run(ctx context.Context, query corefs.Query, emit func([]corefs.SearchHit), onDone func(error)) {
	nodes := p.Nodes()
	var batch []corefs.SearchHit

	for _, n := range nodes {
		select {
		case <-ctx.Done():
			onDone(ctx.Err())
			return
		default:
		}

		info, ok := n.CachedInfo()
		if !ok {
			continue
		}
		if !matchesQuery(query, n.Location(), info) {
			continue
		}
		batch = append(batch, corefs.SearchHit{
			URI:      n.Location(),
			MTime:    info.ModTime,
			ATime:    info.AccessTime,
			CTime:    info.ChangeTime,
			Provider: "model",
		})
		if len(batch) >= modelBatchSize {
			emit(batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		emit(batch)
	}
	onDone(nil)
}
