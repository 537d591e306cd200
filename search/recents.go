package search

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"time"

	"github.com/filedesk/filecore/corefs"
)

// xbelDocument mirrors the subset of the XDG recently-used.xbel schema
// this provider needs. No parser for this format exists anywhere in the
// retrieved pack, so it is read with stdlib encoding/xml rather than
// adapting something unrelated (documented in DESIGN.md as a deliberate
// stdlib choice, not an oversight).
type xbelDocument struct {
	Bookmarks []xbelBookmark `xml:"bookmark"`
}

type xbelBookmark struct {
	Href     string    `xml:"href,attr"`
	Added    time.Time `xml:"added,attr"`
	Modified time.Time `xml:"modified,attr"`
	Visited  time.Time `xml:"visited,attr"`
	Info     struct {
		Metadata struct {
			MimeType struct {
				Type string `xml:"type,attr"`
			} `xml:"mime-type"`
		} `xml:"metadata"`
	} `xml:"info"`
}

// RecentsProvider answers a query against the user's recently-used
// document list, the third independent source spec.md §4.I names
// alongside the index and the live filesystem walk.
type RecentsProvider struct {
	// Path overrides the recently-used.xbel location; empty uses
	// $XDG_DATA_HOME/recently-used.xbel (falling back to
	// ~/.local/share/recently-used.xbel).
	Path string
}

// NewRecentsProvider returns a provider reading the default XDG location.
func NewRecentsProvider() *RecentsProvider {
	return &RecentsProvider{}
}

func (p *RecentsProvider) path() string {
	if p.Path != "" {
		return p.Path
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "recently-used.xbel")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "recently-used.xbel")
}

// Run implements Provider. A missing or unparsable xbel file is reported
// as zero hits and no error: an absent recent-documents list is the
// common case on a freshly provisioned account, not a failure.
func (p *RecentsProvider) Run(ctx context.Context, query corefs.Query, emit func([]corefs.SearchHit), onDone func(error)) {
	data, err := os.ReadFile(p.path())
	if err != nil {
		onDone(nil)
		return
	}

	var doc xbelDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		onDone(nil)
		return
	}

	var hits []corefs.SearchHit
	for _, b := range doc.Bookmarks {
		select {
		case <-ctx.Done():
			onDone(ctx.Err())
			return
		default:
		}

		loc := corefs.ParseLocation(b.Href)
		if !query.MatchesName(loc.Base()) {
			continue
		}
		if len(query.MimeTypes) > 0 && !query.MimeTypes[b.Info.Metadata.MimeType.Type] {
			continue
		}
		if query.HasDateRange {
			t := b.Modified
			switch query.TimeAttr {
			case corefs.TimeAccess:
				t = b.Visited
			case corefs.TimeCreation:
				t = b.Added
			}
			if !query.DateRange.Contains(t) {
				continue
			}
		}
		hits = append(hits, corefs.SearchHit{
			URI:      loc,
			MTime:    b.Modified,
			ATime:    b.Visited,
			CTime:    b.Added,
			Provider: "recents",
		})
	}
	if len(hits) > 0 {
		emit(hits)
	}
	onDone(nil)
}
