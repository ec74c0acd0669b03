package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	mserrors "github.com/openmetalab/metasync/pkg/metadata/errors"
	"github.com/openmetalab/metasync/pkg/metadata/types"

	"github.com/matryer/is"
)

func TestPutAndGetRoundtrip(t *testing.T) {
	is, ctx, store := testSetup(t)

	snapshot := testSnapshot("app.example.com")

	err := store.Put(ctx, snapshot)
	is.NoErr(err)

	stored, err := store.Snapshot(ctx, "app.example.com")
	is.NoErr(err)
	is.Equal(stored.OriginKey, "app.example.com")
	is.Equal(len(stored.Sets), 1)
	is.Equal(stored.Sets[0].Name, "Device")
	is.True(stored.Timestamp.Equal(snapshot.Timestamp))
}

func TestMissingOriginIsANotFound(t *testing.T) {
	is, ctx, store := testSetup(t)

	_, err := store.Snapshot(ctx, "never.seen.org")

	is.True(err != nil)
	is.True(errors.Is(err, mserrors.ErrNotFound))
}

func TestPutReplacesSnapshotWholesale(t *testing.T) {
	is, ctx, store := testSetup(t)

	first := testSnapshot("app.example.com")
	is.NoErr(store.Put(ctx, first))

	second := testSnapshot("app.example.com")
	second.Sets = append(second.Sets, types.Set{ID: 11, Name: "Sensor"})
	is.NoErr(store.Put(ctx, second))

	stored, err := store.Snapshot(ctx, "app.example.com")
	is.NoErr(err)
	is.Equal(len(stored.Sets), 2)
}

func TestOriginsDoNotShareSnapshots(t *testing.T) {
	is, ctx, store := testSetup(t)

	is.NoErr(store.Put(ctx, testSnapshot("a.example.com")))

	_, err := store.Snapshot(ctx, "b.example.com")
	is.True(errors.Is(err, mserrors.ErrNotFound))
}

func testSetup(t *testing.T) (*is.I, context.Context, *Store) {
	is := is.New(t)
	ctx := context.Background()

	store, err := Open(ctx, filepath.Join(t.TempDir(), "snapshots.db"))
	is.NoErr(err)

	t.Cleanup(func() { store.Close() })

	return is, ctx, store
}

func testSnapshot(originKey string) *types.Snapshot {
	return &types.Snapshot{
		OriginKey: originKey,
		Attributes: []types.Attribute{
			{ID: 1, Name: "serial", ClassID: 10, DataType: "string"},
		},
		Sets: []types.Set{
			{ID: 10, Name: "Device"},
		},
		LinkTypes: []types.LinkType{},
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
