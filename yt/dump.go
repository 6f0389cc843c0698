package yt

import (
	"github.com/sanity-io/litter"

	"github.com/kevinxiao27/yata-text/ol"
)

type chunkView struct {
	ID          ol.ID
	OriginLeft  *ol.ID
	OriginRight *ol.ID
	Content     string
	Deleted     bool
}

var dumpOptions = litter.Options{
	StripPackageNames:         true,
	DisablePointerReplacement: true,
}

// Dump renders the chunk list, tombstones included, for debugging.
func (t *Text) Dump() string {
	switch s := t.state.(type) {
	case *prelimText:
		return dumpOptions.Sdump(s.content)
	case *integratedText:
		views := []chunkView{}
		for ref := s.store.start; ref != nilRef; ref = s.store.get(ref).right {
			c := s.store.get(ref)
			views = append(views, chunkView{
				ID:          c.id,
				OriginLeft:  c.originLeft,
				OriginRight: c.originRight,
				Content:     c.content,
				Deleted:     c.deleted,
			})
		}
		return dumpOptions.Sdump(views)
	}
	return ""
}
