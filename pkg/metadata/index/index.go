// Package index derives constant time id lookups from a snapshot. The maps
// are rebuilt in full on every snapshot replacement and never updated
// incrementally.
package index

import (
	"github.com/openmetalab/metasync/pkg/metadata/types"
)

type AttributeEntry struct {
	Name          string
	ParentSetName string
}

type LinkTypeEntry struct {
	Name               string
	SourceCollectionID int64
	TargetCollectionID int64
}

type Maps struct {
	SetByID       map[int64]types.Set
	AttributeByID map[int64]AttributeEntry
	LinkTypeByID  map[int64]LinkTypeEntry
}

func (m Maps) Empty() bool {
	return len(m.SetByID) == 0 && len(m.AttributeByID) == 0 && len(m.LinkTypeByID) == 0
}

// Build creates the lookup maps from a snapshot. Attributes whose owning
// class is not part of the snapshot are excluded from AttributeByID but left
// untouched in the snapshot itself.
func Build(snapshot *types.Snapshot) Maps {
	m := Maps{
		SetByID:       make(map[int64]types.Set, len(snapshot.Sets)),
		AttributeByID: make(map[int64]AttributeEntry, len(snapshot.Attributes)),
		LinkTypeByID:  make(map[int64]LinkTypeEntry, len(snapshot.LinkTypes)),
	}

	for _, set := range snapshot.Sets {
		m.SetByID[set.ID] = set
	}

	for _, attr := range snapshot.Attributes {
		parent, ok := m.SetByID[attr.ClassID]
		if !ok {
			continue
		}

		m.AttributeByID[attr.ID] = AttributeEntry{
			Name:          attr.Name,
			ParentSetName: parent.Name,
		}
	}

	for _, lt := range snapshot.LinkTypes {
		m.LinkTypeByID[lt.ID] = LinkTypeEntry{
			Name:               lt.Name,
			SourceCollectionID: lt.SourceCollectionID,
			TargetCollectionID: lt.TargetCollectionID,
		}
	}

	return m
}
