// Package labels models the label vocabulary of a token-classification task:
// an immutable id<->name bijection over the category labels (e.g. "O",
// "B-person", "I-person"), plus the reserved ignore sentinel used to exclude
// token positions from the loss and from evaluation.
//
// Build the Vocabulary once at startup and pass it explicitly to whatever
// needs it; there is no package-level mutable state.
package labels

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Ignore is the reserved label id for token positions that must be excluded
// from the loss and from evaluation scoring: special tokens, non-leading
// subwords of a multi-subword word, and batch padding.
//
// Real label ids are always non-negative, so Ignore can never collide with
// one. The value matches the cross-entropy ignore-index convention used by
// the downstream training loop.
const Ignore = -100

// Outside is the conventional name of the "not an entity" label.
const Outside = "O"

// Vocabulary is an immutable bijection between label ids and label names.
type Vocabulary struct {
	names []string
	ids   map[string]int
}

// FromNames builds a Vocabulary where names[i] gets label id i.
// Names must be non-empty and unique.
func FromNames(names []string) (*Vocabulary, error) {
	v := &Vocabulary{
		names: slices.Clone(names),
		ids:   make(map[string]int, len(names)),
	}
	for id, name := range v.names {
		if name == "" {
			return nil, errors.Errorf("empty label name at id %d", id)
		}
		if prev, dup := v.ids[name]; dup {
			return nil, errors.Errorf("duplicate label %q (ids %d and %d)", name, prev, id)
		}
		v.ids[name] = id
	}
	return v, nil
}

// Len returns the number of labels.
func (v *Vocabulary) Len() int { return len(v.names) }

// Name returns the label name for the given id.
func (v *Vocabulary) Name(id int) (string, error) {
	if id < 0 || id >= len(v.names) {
		return "", errors.Errorf("label id %d out of range [0,%d)", id, len(v.names))
	}
	return v.names[id], nil
}

// ID returns the label id for the given name.
func (v *Vocabulary) ID(name string) (int, error) {
	id, ok := v.ids[name]
	if !ok {
		return 0, errors.Errorf("unknown label %q", name)
	}
	return id, nil
}

// Names returns a copy of the label names, ordered by id.
func (v *Vocabulary) Names() []string { return slices.Clone(v.names) }

// ParseTag splits a BIO tag into its prefix and entity type:
// "B-person" -> ('B', "person"), "I-org" -> ('I', "org"), "O" -> ('O', "").
// Tags without a recognized prefix are treated as entity types with an
// implicit 'I' prefix, matching common loose corpora.
func ParseTag(tag string) (prefix byte, entity string) {
	if tag == Outside {
		return 'O', ""
	}
	if len(tag) > 2 && tag[1] == '-' && (tag[0] == 'B' || tag[0] == 'I') {
		return tag[0], tag[2:]
	}
	return 'I', tag
}

// IsOutside reports whether the tag marks a non-entity position.
func IsOutside(tag string) bool {
	return tag == Outside || strings.TrimSpace(tag) == ""
}
