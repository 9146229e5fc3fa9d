package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"
	"txexport/internal/components/chrono"
	"txexport/internal/components/db"
	"txexport/internal/components/telemetry"
	"txexport/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.October, 3, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, Storage) {
	sqlite, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "ledger",
		Schema: db.Schema,
	})
	t.Cleanup(cleanup)

	clock := chrono.NewFixedImpl(testNow)
	storage, err := NewSqliteStorage(sqlite, clock)
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(storage, clock, telemetry.NewRecorder()), storage
}

func TestSqliteStorageStampsSlot(t *testing.T) {
	sqlite, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "ledger-stamp",
		Schema: db.Schema,
	})
	defer cleanup()

	clock := chrono.NewFixedImpl(testNow)
	storage, err := NewSqliteStorage(sqlite, clock)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, NewSession()))
	slot, err := db.New(sqlite).GetSlot(ctx, db.SessionKey)
	require.NoError(t, err)
	require.Equal(t, testNow.Unix(), slot.UpdatedAt)

	later := testNow.Add(time.Hour)
	clock.Set(later)
	require.NoError(t, storage.Save(ctx, NewSession()))
	slot, err = db.New(sqlite).GetSlot(ctx, db.SessionKey)
	require.NoError(t, err)
	require.Equal(t, later.Unix(), slot.UpdatedAt)
}

func testRecord(date, ref string, amount float64, method string) Record {
	id, err := NewRecordID(date, ref, testNow)
	if err != nil {
		panic(err)
	}
	return Record{
		ID:                id,
		Date:              date,
		PaymentMethod:     method,
		Amount:            amount,
		Currency:          "USD",
		ExternalReference: ref,
	}
}

func TestStoreMerge(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t)

	first := []Record{
		testRecord("2024-10-01", "111-1", -27.91, "Visa ****1234"),
		testRecord("2024-10-01", "111-2", -5.00, "Visa ****1234"),
	}
	res, err := store.Merge(ctx, first)
	require.NoError(t, err)
	require.Equal(t, MergeResult{Inserted: 2}, res)

	session := store.Session()
	require.Equal(t, 2, session.Total)
	require.Equal(t, 1, session.Captures)
	require.True(t, session.LastUpdate.Equal(testNow))

	// the same transactions under new ids are skipped and never overwrite
	again := []Record{
		testRecord("2024-10-01", "111-1", -27.91, "Visa ****1234"),
		testRecord("2024-10-01", "111-2", -5.00, "Visa ****1234"),
	}
	again[0].Status = "changed"
	res, err = store.Merge(ctx, again)
	require.NoError(t, err)
	require.Equal(t, MergeResult{Skipped: 2}, res)

	session = store.Session()
	require.Equal(t, 1, session.Captures)
	require.Equal(t, "", session.Records[first[0].ID].Status)

	persisted, err := storage.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(session, persisted); diff != "" {
		t.Fatalf("persisted session differs (-store +persisted):\n%s", diff)
	}
}

func TestStoreMergeDuplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	a := testRecord("2024-10-01", "", -3.00, "Gift card")
	b := testRecord("2024-10-01", "", -3.00, "Gift card")
	c := testRecord("2024-10-01", "", -3.00, "Visa ****1234")

	res, err := store.Merge(ctx, []Record{a, b, c})
	require.NoError(t, err)
	require.Equal(t, MergeResult{Inserted: 2, Skipped: 1}, res)
	require.True(t, store.Contains(a.Key()))
	require.True(t, store.Contains(c.Key()))
}

func TestStoreMergeNothingNewDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := NewStore(storage, chrono.NewFixedImpl(testNow), telemetry.NewRecorder())

	res, err := store.Merge(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, MergeResult{}, res)
	require.Equal(t, 0, storage.Saves())
	require.Equal(t, 0, store.Session().Captures)
}

func TestStoreMergeRegeneratesCollidingID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	a := testRecord("2024-10-01", "111-1", -1, "Visa")
	b := testRecord("2024-10-02", "111-2", -2, "Visa")
	b.ID = a.ID

	res, err := store.Merge(ctx, []Record{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Len(t, store.Records(), 2)
}

// random batches with many repeated transactions never produce two stored
// records with the same natural key
func TestStoreNaturalKeyUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStorage(), chrono.NewFixedImpl(testNow), telemetry.NewRecorder())
	rndm := rand.New(rand.NewSource(42))
	pickDate := testutil.RandomSwitch(3, 2, 1)

	expected := map[NaturalKey]struct{}{}
	for batch := 0; batch < 10; batch++ {
		records := []Record{}
		for range 20 {
			r := testRecord(
				fmt.Sprintf("2024-10-0%d", pickDate(rndm)+1),
				fmt.Sprintf("ref-%d", rndm.Intn(8)),
				float64(rndm.Intn(3)),
				"Visa",
			)
			expected[r.Key()] = struct{}{}
			records = append(records, r)
		}
		_, err := store.Merge(ctx, records)
		require.NoError(t, err)
	}

	seen := map[NaturalKey]string{}
	for id, r := range store.Records() {
		other, dup := seen[r.Key()]
		require.False(t, dup, "records %s and %s share a natural key", id, other)
		seen[r.Key()] = id
	}
	require.Len(t, seen, len(expected))
	require.Equal(t, len(expected), store.Session().Total)
}

func TestStoreSessionMutations(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t)

	pages, err := store.SetPagesToCapture(ctx, 120)
	require.NoError(t, err)
	require.Equal(t, MaxPagesToCapture, pages)
	pages, err = store.SetPagesToCapture(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, MinPagesToCapture, pages)

	run, err := store.StartMultiPageRun(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 1, run.CurrentPage)

	require.NoError(t, store.AdvanceMultiPageRun(ctx, 2))
	require.NoError(t, store.RequestStop(ctx))

	persisted, err := storage.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, persisted.MultiPageRun)
	require.Equal(t, run.ID, persisted.MultiPageRun.ID)
	require.Equal(t, 2, persisted.MultiPageRun.CurrentPage)
	require.True(t, persisted.StopRequested)

	stop, err := store.StopRequested(ctx)
	require.NoError(t, err)
	require.True(t, stop)

	require.NoError(t, store.FinishMultiPageRun(ctx, RunSummary{
		ID:            run.ID,
		Outcome:       "completed",
		PagesCaptured: 3,
		TotalPages:    3,
	}))
	persisted, err = storage.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, persisted.MultiPageRun)
	require.False(t, persisted.StopRequested)
	require.NotNil(t, persisted.LastRun)
	require.Equal(t, "completed", persisted.LastRun.Outcome)
	require.True(t, persisted.LastRun.FinishedAt.Equal(testNow))

	_, err = store.StartMultiPageRun(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, store.ClearMultiPageRun(ctx))
	persisted, err = storage.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, persisted.MultiPageRun)
}

func TestStoreSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	capture := NewStore(storage, chrono.NewFixedImpl(testNow), telemetry.NewRecorder())
	control := NewStore(storage, chrono.NewFixedImpl(testNow), telemetry.NewRecorder())

	_, err := capture.StartMultiPageRun(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, control.RequestStop(ctx))

	// a merge from the capturing store must not clobber the stop flag
	_, err = capture.Merge(ctx, []Record{testRecord("2024-10-01", "a", 1, "Visa")})
	require.NoError(t, err)

	stop, err := control.StopRequested(ctx)
	require.NoError(t, err)
	require.True(t, stop)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t)

	_, err := store.Merge(ctx, []Record{testRecord("2024-10-01", "a", 1, "Visa")})
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))
	require.Len(t, store.Records(), 0)

	persisted, err := storage.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(NewSession(), persisted); diff != "" {
		t.Fatalf("cleared session is not empty:\n%s", diff)
	}
}

func TestNewRecordID(t *testing.T) {
	id, err := NewRecordID("2024-10-01", "111-1", testNow)
	require.NoError(t, err)
	require.Regexp(t, `^2024-10-01_111-1_\w{9}$`, id)

	id, err = NewRecordID("2024-10-01", "", testNow)
	require.NoError(t, err)
	require.Regexp(t, fmt.Sprintf(`^2024-10-01_%d_\w{9}$`, testNow.UnixMilli()), id)
}
