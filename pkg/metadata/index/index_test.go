package index

import (
	"reflect"
	"testing"
	"time"

	"github.com/openmetalab/metasync/pkg/metadata/types"

	"github.com/matryer/is"
)

func TestBuildIsDeterministic(t *testing.T) {
	is := is.New(t)

	snapshot := testSnapshot()

	first := Build(snapshot)
	second := Build(snapshot)

	is.True(reflect.DeepEqual(first, second))
}

func TestAttributesAreIndexedWithTheirParentSetName(t *testing.T) {
	is := is.New(t)

	m := Build(testSnapshot())

	entry, ok := m.AttributeByID[1]
	is.True(ok)
	is.Equal(entry.Name, "serial")
	is.Equal(entry.ParentSetName, "Device")
}

func TestUnresolvableAttributeIsExcludedButKeptInSnapshot(t *testing.T) {
	is := is.New(t)

	snapshot := testSnapshot()

	m := Build(snapshot)

	_, indexed := m.AttributeByID[2]
	is.True(!indexed)

	// the raw attribute array is untouched
	is.Equal(len(snapshot.Attributes), 2)
	is.Equal(snapshot.Attributes[1].ClassID, int64(999))
}

func TestLinkTypesKeepTheirEndpointCollectionIDs(t *testing.T) {
	is := is.New(t)

	m := Build(testSnapshot())

	entry, ok := m.LinkTypeByID[100]
	is.True(ok)
	is.Equal(entry.Name, "measures")
	is.Equal(entry.SourceCollectionID, int64(10))
	is.Equal(entry.TargetCollectionID, int64(11))
}

func TestEmpty(t *testing.T) {
	is := is.New(t)

	is.True(Build(&types.Snapshot{}).Empty())
	is.True(!Build(testSnapshot()).Empty())
}

func testSnapshot() *types.Snapshot {
	return &types.Snapshot{
		OriginKey: "app.example.com",
		Attributes: []types.Attribute{
			{ID: 1, Name: "serial", ClassID: 10, DataType: "string"},
			{ID: 2, Name: "orphan", ClassID: 999, DataType: "string"},
		},
		Sets: []types.Set{
			{ID: 10, Name: "Device"},
			{ID: 11, Name: "Measurement"},
		},
		LinkTypes: []types.LinkType{
			{ID: 100, Name: "measures", SourceCollectionID: 10, TargetCollectionID: 11},
		},
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
