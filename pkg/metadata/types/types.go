package types

import (
	"encoding/json"
	"time"
)

// Attribute is a single metadata attribute as served by the host application.
// The owning set is referenced by ClassID and may not resolve to a set that
// this client has seen; such attributes are kept in snapshots but excluded
// from the lookup index.
type Attribute struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	ClassID     int64               `json:"classId"`
	DataType    string              `json:"dataType"`
	Description string              `json:"description,omitempty"`
	Properties  AttributeProperties `json:"properties"`
}

type AttributeProperties struct {
	Indexed    bool `json:"indexed"`
	Searchable bool `json:"searchable"`
}

// Set is an entity collection (the host application calls these classes).
type Set struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Core          bool            `json:"core"`
	IsHidden      bool            `json:"isHidden"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
}

// LinkType connects two sets. It is only resolvable when both collection ids
// map to known sets.
type LinkType struct {
	ID                 int64          `json:"id"`
	Name               string         `json:"name"`
	SourceCollectionID int64          `json:"sourceCollectionId"`
	TargetCollectionID int64          `json:"targetCollectionId"`
	Directed           bool           `json:"directed"`
	Core               bool           `json:"core"`
	Config             LinkTypeConfig `json:"config"`
}

type LinkTypeConfig struct {
	Type        string            `json:"type"`
	LinkStorage LinkStorage       `json:"linkStorage"`
	Conditions  []json.RawMessage `json:"conditions,omitempty"`
}

type LinkStorage struct {
	Mode          string             `json:"mode"`
	Configuration LinkStorageDetails `json:"configuration"`
}

type LinkStorageDetails struct {
	ConnectingEntityClassID *int64 `json:"connectingEntityClassId,omitempty"`
}

// Snapshot is a full-replacement record of all metadata collections for one
// origin. Snapshots are only ever replaced wholesale, never merged.
type Snapshot struct {
	OriginKey  string      `json:"originKey"`
	Attributes []Attribute `json:"attributes"`
	Sets       []Set       `json:"sets"`
	LinkTypes  []LinkType  `json:"linkTypes"`
	Timestamp  time.Time   `json:"timestamp"`
}

// TruncateResult is the host application's response to a class truncation.
type TruncateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
