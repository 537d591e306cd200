package search

import (
	"context"
	"encoding/json"
	"html"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/filedesk/filecore/corefs"
)

var (
	bucketRecords = []byte("records")
	bucketTokens  = []byte("tokens")
)

// snippet delimiters, generalized from the original's fixed
// "_NAUTILUS_SNIPPET_DELIM_START_"/"_END_" sentinel strings into bytes
// that cannot occur in ordinary indexed text, so the UI layer can later
// split on them unambiguously to apply its own markup.
const (
	snippetStart = "\x00S\x00"
	snippetEnd   = "\x00E\x00"
)

type indexedRecord struct {
	URI     string
	Name    string
	Content string
	Mime    string
	MTime   int64
	ATime   int64
	CTime   int64
}

// IndexedProvider answers queries against a local bbolt database built by
// Index, standing in for the out-of-process RDF content index spec.md
// §4.I describes: no such external daemon is reachable from a library, so
// the same embedded store the teacher uses for attribute persistence
// (backend/cache/storage_persistent.go) backs this provider instead.
type IndexedProvider struct {
	db *bolt.DB
}

// OpenIndexedProvider opens (creating if absent) the bbolt database at
// path and ensures its buckets exist.
func OpenIndexedProvider(path string) (*IndexedProvider, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, corefs.Wrap(corefs.KindBackendUnavailable, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTokens)
		return err
	})
	if err != nil {
		db.Close()
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	return &IndexedProvider{db: db}, nil
}

// Close releases the underlying bbolt database.
func (p *IndexedProvider) Close() error {
	return p.db.Close()
}

// Index adds or replaces the indexed record for loc, tokenizing name for
// the inverted name index and storing content verbatim for snippet
// extraction at query time.
func (p *IndexedProvider) Index(loc corefs.Location, name, content, mime string, mtime, atime, ctime time.Time) error {
	rec := indexedRecord{
		URI:     loc.String(),
		Name:    name,
		Content: content,
		Mime:    mime,
		MTime:   mtime.Unix(),
		ATime:   atime.Unix(),
		CTime:   ctime.Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}

	return p.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRecords).Put([]byte(rec.URI), data); err != nil {
			return err
		}
		tokBucket := tx.Bucket(bucketTokens)
		for _, tok := range corefs.NewQuery(name).Tokens {
			key := []byte(tok)
			existing := tokBucket.Get(key)
			var uris []string
			if existing != nil {
				_ = json.Unmarshal(existing, &uris)
			}
			if !containsStr(uris, rec.URI) {
				uris = append(uris, rec.URI)
			}
			encoded, err := json.Marshal(uris)
			if err != nil {
				return err
			}
			if err := tokBucket.Put(key, encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Run implements Provider: intersects the token index for query.Tokens
// (or, if the query has no tokens, scans every record) and streams
// matching, filtered records in batches of 100, per spec.md §4.I.
func (p *IndexedProvider) Run(ctx context.Context, query corefs.Query, emit func([]corefs.SearchHit), onDone func(error)) {
	const batchSize = 100

	var uris []string
	err := p.db.View(func(tx *bolt.Tx) error {
		var err error
		uris, err = p.candidateURIs(tx, query)
		return err
	})
	if err != nil {
		onDone(err)
		return
	}

	var batch []corefs.SearchHit
	for _, uri := range uris {
		select {
		case <-ctx.Done():
			onDone(ctx.Err())
			return
		default:
		}

		hit, ok, err := p.lookupHit(uri, query)
		if err != nil {
			onDone(err)
			return
		}
		if !ok {
			continue
		}
		batch = append(batch, hit)
		if len(batch) >= batchSize {
			emit(batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		emit(batch)
	}
	onDone(nil)
}

func (p *IndexedProvider) candidateURIs(tx *bolt.Tx, query corefs.Query) ([]string, error) {
	if len(query.Tokens) == 0 {
		var all []string
		c := tx.Bucket(bucketRecords).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			all = append(all, string(k))
		}
		return all, nil
	}

	tokBucket := tx.Bucket(bucketTokens)
	var result map[string]struct{}
	for i, tok := range query.Tokens {
		raw := tokBucket.Get([]byte(tok))
		var uris []string
		if raw != nil {
			if err := json.Unmarshal(raw, &uris); err != nil {
				return nil, err
			}
		}
		set := make(map[string]struct{}, len(uris))
		for _, u := range uris {
			set[u] = struct{}{}
		}
		if i == 0 {
			result = set
			continue
		}
		for u := range result {
			if _, ok := set[u]; !ok {
				delete(result, u)
			}
		}
	}
	out := make([]string, 0, len(result))
	for u := range result {
		out = append(out, u)
	}
	return out, nil
}

func (p *IndexedProvider) lookupHit(uri string, query corefs.Query) (corefs.SearchHit, bool, error) {
	var rec indexedRecord
	err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(uri))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return corefs.SearchHit{}, false, err
	}
	if rec.URI == "" {
		return corefs.SearchHit{}, false, nil
	}

	if len(query.MimeTypes) > 0 && !query.MimeTypes[rec.Mime] {
		return corefs.SearchHit{}, false, nil
	}
	if query.HasDateRange {
		t := time.Unix(rec.MTime, 0)
		switch query.TimeAttr {
		case corefs.TimeAccess:
			t = time.Unix(rec.ATime, 0)
		case corefs.TimeCreation:
			t = time.Unix(rec.CTime, 0)
		}
		if !query.DateRange.Contains(t) {
			return corefs.SearchHit{}, false, nil
		}
	}

	hit := corefs.SearchHit{
		URI:      corefs.ParseLocation(rec.URI),
		Rank:     rankFilename(query, rec.Name),
		MTime:    time.Unix(rec.MTime, 0),
		ATime:    time.Unix(rec.ATime, 0),
		CTime:    time.Unix(rec.CTime, 0),
		Provider: "indexed",
	}
	if rec.Content != "" && len(query.Tokens) > 0 {
		hit.Snippet = buildSnippet(rec.Content, query.Tokens)
	}
	return hit, true, nil
}

// rankFilename scores a name match by the fraction of the name's length
// the matched tokens cover, a simple stand-in for the original's
// similarity-scaled filename rank.
func rankFilename(query corefs.Query, name string) float64 {
	if len(query.Tokens) == 0 {
		return 0
	}
	lowered := strings.ToLower(name)
	var covered int
	for _, tok := range query.Tokens {
		covered += len(tok) * strings.Count(lowered, tok)
	}
	if len(lowered) == 0 {
		return 0
	}
	rank := float64(covered) / float64(len(lowered))
	if rank > 1 {
		rank = 1
	}
	return rank
}

// buildSnippet wraps the first token match in content with the sentinel
// delimiters, HTML-escaping the surrounding text first so the later
// markup substitution can't be confused by content that happens to
// contain "<" or "&".
func buildSnippet(content string, tokens []string) string {
	lowered := strings.ToLower(content)
	for _, tok := range tokens {
		idx := strings.Index(lowered, tok)
		if idx < 0 {
			continue
		}
		start := idx - 40
		if start < 0 {
			start = 0
		}
		end := idx + len(tok) + 40
		if end > len(content) {
			end = len(content)
		}
		before := html.EscapeString(content[start:idx])
		match := html.EscapeString(content[idx : idx+len(tok)])
		after := html.EscapeString(content[idx+len(tok) : end])
		return before + snippetStart + match + snippetEnd + after
	}
	return ""
}
