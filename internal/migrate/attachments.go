package migrate

import (
	"context"

	"github.com/danielolaszy/bz2gl/pkg/models"
)

// filler is prefixed to a filename to tell it apart from an earlier
// attachment with the same name.
const filler = "x"

// Attachment is an active attachment that has been transferred to the
// destination. It is immutable once built.
type Attachment struct {
	ID       int
	Filename string

	// Markdown is the display token returned by the transfer.
	Markdown string
}

func (a *Attachment) String() string {
	return a.Markdown
}

// Transfer moves one attachment to the destination under filename and
// returns its display token.
type Transfer func(ctx context.Context, raw models.RawAttachment, filename string) (string, error)

// Registry owns every attachment of one bug record.
type Registry struct {
	active   map[int]*Attachment
	order    []int
	obsolete map[int]bool
}

// BuildRegistry partitions raws into active and obsolete attachments,
// disambiguates repeated filenames, and transfers every active attachment
// in source order. The first failed transfer aborts the build.
//
// Only a name's first repeat is disambiguated: a third attachment with the
// same filename is registered as-is.
func BuildRegistry(ctx context.Context, raws []models.RawAttachment, transfer Transfer) (*Registry, error) {
	reg := &Registry{
		active:   make(map[int]*Attachment),
		obsolete: make(map[int]bool),
	}

	var used []string
	for _, raw := range raws {
		if raw.Obsolete {
			reg.obsolete[raw.ID] = true
			continue
		}

		filename := raw.Filename
		if countMatches(used, filename) == 1 {
			filename = filler + filename
		}
		used = append(used, filename)

		token, err := transfer(ctx, raw, filename)
		if err != nil {
			return nil, err
		}

		reg.active[raw.ID] = &Attachment{ID: raw.ID, Filename: filename, Markdown: token}
		reg.order = append(reg.order, raw.ID)
	}

	return reg, nil
}

// countMatches counts registered names that are filename itself or its
// disambiguated form.
func countMatches(used []string, filename string) int {
	n := 0
	for _, name := range used {
		if name == filename || name == filler+filename {
			n++
		}
	}
	return n
}

// Lookup returns the active attachment with the given id.
func (r *Registry) Lookup(id int) (*Attachment, bool) {
	a, ok := r.active[id]
	return a, ok
}

// IsObsolete reports whether id belongs to an obsolete attachment.
func (r *Registry) IsObsolete(id int) bool {
	return r.obsolete[id]
}

// Known reports whether id is an active or obsolete attachment of the record.
func (r *Registry) Known(id int) bool {
	_, ok := r.active[id]
	return ok || r.obsolete[id]
}

// Active returns the active attachments in source order.
func (r *Registry) Active() []*Attachment {
	out := make([]*Attachment, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.active[id])
	}
	return out
}

// ObsoleteIDs returns the ids of obsolete attachments.
func (r *Registry) ObsoleteIDs() map[int]bool {
	out := make(map[int]bool, len(r.obsolete))
	for id := range r.obsolete {
		out[id] = true
	}
	return out
}
