package models

import (
	"strings"

	"github.com/gofrs/uuid"
)

func NewID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func IsValidID(id string) bool {
	_, err := uuid.FromString(strings.TrimSpace(id))
	return err == nil
}

// UniqueIDs trims ids and drops empties and repeats, keeping first occurrence
// order. The result is never nil.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DiffIDs returns the ids only in before (removed) and only in after (added).
func DiffIDs(before, after []string) (removed, added []string) {
	inBefore := make(map[string]struct{}, len(before))
	for _, id := range before {
		inBefore[id] = struct{}{}
	}
	inAfter := make(map[string]struct{}, len(after))
	for _, id := range after {
		inAfter[id] = struct{}{}
	}
	for _, id := range before {
		if _, ok := inAfter[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range after {
		if _, ok := inBefore[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}
