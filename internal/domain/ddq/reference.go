package ddq

import (
	"fmt"
	"strings"
)

type rowKey struct {
	sheet string
	row   int
}

type idKey struct {
	sheet string
	id    string
}

// ReferenceSet holds model answers, addressable by (sheet, row) or by (sheet, question id).
type ReferenceSet struct {
	byRow  map[rowKey]string
	byID   map[idKey]string
	sheets map[string]bool
	// ambiguous ids appear on several rows with different model answers
	ambiguous map[idKey]bool

	// Strict makes a lookup on an unknown sheet a row-level extraction error.
	Strict bool
}

func NewReferenceSet(strict bool) *ReferenceSet {
	return &ReferenceSet{
		byRow:  make(map[rowKey]string),
		byID:      make(map[idKey]string),
		sheets:    make(map[string]bool),
		ambiguous: make(map[idKey]bool),
		Strict:    strict,
	}
}

// AddRow records the model answer found at a sheet position. An id repeated
// with a different answer stops resolving by id; its rows still resolve by position.
func (r *ReferenceSet) AddRow(sheet string, row int, questionID, expected string) {
	r.sheets[sheet] = true
	r.byRow[rowKey{sheet, row}] = expected
	id := strings.TrimSpace(questionID)
	if id == "" {
		return
	}
	k := idKey{sheet, id}
	if prev, dup := r.byID[k]; dup && prev != expected {
		r.ambiguous[k] = true
		return
	}
	r.byID[k] = expected
}

// AddQuestion records a model answer keyed only by question id.
func (r *ReferenceSet) AddQuestion(sheet, questionID, expected string) {
	r.sheets[sheet] = true
	if id := strings.TrimSpace(questionID); id != "" {
		r.byID[idKey{sheet, id}] = expected
		delete(r.ambiguous, idKey{sheet, id})
	}
}

// Len returns the number of addressable model answers.
func (r *ReferenceSet) Len() int {
	if r == nil {
		return 0
	}
	if len(r.byRow) > len(r.byID) {
		return len(r.byRow)
	}
	return len(r.byID)
}

// Expected resolves the model answer for a row: by (sheet, row) first, then
// by question id when that id is unique within the sheet.
func (r *ReferenceSet) Expected(sheet string, row int, questionID string) (string, error) {
	if r == nil {
		return "", nil
	}
	if r.Strict && !r.sheets[sheet] {
		return "", fmt.Errorf("reference has no sheet %q", sheet)
	}
	if v, ok := r.byRow[rowKey{sheet, row}]; ok {
		return v, nil
	}
	if id := strings.TrimSpace(questionID); id != "" {
		k := idKey{sheet, id}
		if !r.ambiguous[k] {
			return r.byID[k], nil
		}
	}
	return "", nil
}
