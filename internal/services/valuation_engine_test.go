package services

import (
	"math"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"assetmanager/internal/events"
	"assetmanager/internal/models"
	"assetmanager/internal/pagination"
	"assetmanager/internal/testutil"
	"assetmanager/internal/valuation"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DataPointQueued
}

func (p *recordingPublisher) Publish(event events.DataPointQueued) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) published() []events.DataPointQueued {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.DataPointQueued(nil), p.events...)
}

type recordingRecorder struct {
	mu          sync.Mutex
	submissions map[string]int
	resolutions map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{submissions: map[string]int{}, resolutions: map[string]int{}}
}

func (r *recordingRecorder) ObserveSubmission(outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions[outcome]++
}

func (r *recordingRecorder) ObserveResolution(resolution string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions[resolution]++
}

func (r *recordingRecorder) SetPending(float64)      {}
func (r *recordingRecorder) SetStalePending(float64) {}

type engineFixture struct {
	engine    AssetServicer
	publisher *recordingPublisher
	recorder  *recordingRecorder
}

func newTestEngine(t *testing.T, db *gorm.DB, mode valuation.Mode, opts ...EngineOption) engineFixture {
	t.Helper()
	pub := &recordingPublisher{}
	rec := newRecordingRecorder()
	engine, err := NewValuationEngine(NewRegistryStore(db), EngineConfig{ThresholdBps: 1000, Mode: mode}, pub, rec, opts...)
	testutil.AssertNoError(t, err)
	return engineFixture{engine: engine, publisher: pub, recorder: rec}
}

// registerCar registers the asset used throughout: value 1000 with one
// temperature reading of 72.
func registerCar(t *testing.T, engine AssetServicer) *models.Asset {
	t.Helper()
	asset, err := engine.RegisterAsset(RegisterAssetInput{
		Name:         "Car",
		InitialValue: int64Ptr(1000),
		DataPoints: []InitialDataPoint{
			{Name: "temperature", Value: 72, ImpactRule: "temperature"},
		},
	})
	testutil.AssertNoError(t, err)
	return asset
}

func assetValue(t *testing.T, engine AssetServicer, id uint64) int64 {
	t.Helper()
	asset, err := engine.GetAsset(id)
	testutil.AssertNoError(t, err)
	return asset.Value
}

func TestNewValuationEngine(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewRegistryStore(db)

	if _, err := NewValuationEngine(store, EngineConfig{ThresholdBps: 0}, nil, nil); err == nil {
		t.Error("expected error for a zero threshold")
	}
	if _, err := NewValuationEngine(store, EngineConfig{ThresholdBps: 1000, Mode: "median"}, nil, nil); err == nil {
		t.Error("expected error for an unknown mode")
	}
	if _, err := NewValuationEngine(store, EngineConfig{ThresholdBps: 1000}, nil, nil); err != nil {
		t.Errorf("expected defaults to be accepted, got %v", err)
	}
}

func TestRegisterAsset(t *testing.T) {
	t.Run("initial_points_are_applied_without_valuation_change", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset := registerCar(t, f.engine)

		if asset.ID != 0 {
			t.Errorf("expected first asset id 0, got %d", asset.ID)
		}
		if asset.Value != 1000 {
			t.Errorf("expected value 1000, got %d", asset.Value)
		}
		if len(asset.DataPoints) != 1 {
			t.Fatalf("expected 1 data point, got %d", len(asset.DataPoints))
		}
		dp := asset.DataPoints[0]
		if dp.NeedsApproval || dp.Resolution != models.ResolutionInitial {
			t.Errorf("expected applied initial point, got needs_approval=%v resolution=%s", dp.NeedsApproval, dp.Resolution)
		}
		if len(f.publisher.published()) != 0 {
			t.Error("registration must not publish notifications")
		}
	})

	t.Run("caller_marked_point_is_pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:         "Car",
			InitialValue: int64Ptr(1000),
			DataPoints: []InitialDataPoint{
				{Name: "temperature", Value: 72, ImpactRule: "temperature"},
				{Name: "temperature", Value: 77, NeedsApproval: true},
			},
		})
		testutil.AssertNoError(t, err)

		dp := asset.DataPoints[1]
		if !dp.NeedsApproval || dp.Resolution != models.ResolutionPending {
			t.Fatalf("expected pending point, got needs_approval=%v resolution=%s", dp.NeedsApproval, dp.Resolution)
		}
		if dp.ImpactRule != "temperature" || dp.Baseline != 72 {
			t.Errorf("expected inherited rule and baseline 72, got %q and %d", dp.ImpactRule, dp.Baseline)
		}
		if len(f.publisher.published()) != 0 {
			t.Error("registration must not publish notifications")
		}

		_, err = f.engine.ApproveDataPoint(asset.ID, 1, "approver")
		testutil.AssertNoError(t, err)
		if got := assetValue(t, f.engine, asset.ID); got != 800 {
			t.Errorf("expected value 800 after approval, got %d", got)
		}
	})

	t.Run("unknown_impact_rule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		_, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:       "Car",
			DataPoints: []InitialDataPoint{{Name: "temperature", Value: 72, ImpactRule: "pressure"}},
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("ids_are_sequential", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		for want := uint64(0); want < 3; want++ {
			next, err := f.engine.NextAssetID()
			testutil.AssertNoError(t, err)
			asset, err := f.engine.RegisterAsset(RegisterAssetInput{Name: "Asset"})
			testutil.AssertNoError(t, err)
			if next != want || asset.ID != want {
				t.Errorf("expected id %d, got next=%d assigned=%d", want, next, asset.ID)
			}
		}
	})
}

func TestAddDataPoint_WorkedExample(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	f := newTestEngine(t, db, valuation.ModePreviousValue)
	asset := registerCar(t, f.engine)

	// 72 -> 77 is 694 bps, under the 1000 bps threshold.
	dp, err := f.engine.AddDataPoint(asset.ID, "temperature", 77)
	testutil.AssertNoError(t, err)
	if dp.Index != 1 || dp.NeedsApproval || dp.Resolution != models.ResolutionAutoApplied {
		t.Fatalf("expected auto-applied point at index 1, got %+v", dp)
	}
	if got := assetValue(t, f.engine, asset.ID); got != 800 {
		t.Fatalf("expected value 800, got %d", got)
	}

	// 77 -> 90 is 1688 bps.
	dp, err = f.engine.AddDataPoint(asset.ID, "temperature", 90)
	testutil.AssertNoError(t, err)
	testutil.AssertDataPointState(t, dp, true, models.ResolutionPending)
	if dp.Index != 2 {
		t.Fatalf("expected pending point at index 2, got %d", dp.Index)
	}
	if dp.Baseline != 77 {
		t.Errorf("expected baseline 77, got %d", dp.Baseline)
	}
	if got := assetValue(t, f.engine, asset.ID); got != 800 {
		t.Errorf("queued reading must not change the value, got %d", got)
	}

	published := f.publisher.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(published))
	}
	ev := published[0]
	if ev.AssetID != 0 || ev.Index != 2 || ev.Name != "temperature" || ev.Value != 90 || ev.Sequence == 0 {
		t.Errorf("unexpected notification %+v", ev)
	}

	replay, err := f.engine.ListQueueEvents(0, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if replay.TotalItems != 1 || replay.Data[0].Sequence != ev.Sequence {
		t.Errorf("expected durable event with sequence %d, got %+v", ev.Sequence, replay.Data)
	}

	if f.recorder.submissions["auto_applied"] != 1 || f.recorder.submissions["queued"] != 1 {
		t.Errorf("unexpected submission metrics %v", f.recorder.submissions)
	}
}

func TestAddDataPoint(t *testing.T) {
	t.Run("ratio_at_threshold_is_queued", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:       "Tank",
			DataPoints: []InitialDataPoint{{Name: "pressure", Value: 100}},
		})
		testutil.AssertNoError(t, err)

		dp, err := f.engine.AddDataPoint(asset.ID, "pressure", 110)
		testutil.AssertNoError(t, err)
		if !dp.NeedsApproval {
			t.Error("expected a 1000 bps deviation to need approval")
		}
	})

	t.Run("default_rule_decreases_by_deviation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:         "Tank",
			InitialValue: int64Ptr(100),
			DataPoints:   []InitialDataPoint{{Name: "pressure", Value: 100}},
		})
		testutil.AssertNoError(t, err)

		_, err = f.engine.AddDataPoint(asset.ID, "pressure", 95)
		testutil.AssertNoError(t, err)
		if got := assetValue(t, f.engine, asset.ID); got != 95 {
			t.Errorf("expected value 95, got %d", got)
		}
	})

	t.Run("soil_quality_follows_reading", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:         "Field",
			InitialValue: int64Ptr(500),
			DataPoints:   []InitialDataPoint{{Name: "soil", Value: 40, ImpactRule: "soil_quality"}},
		})
		testutil.AssertNoError(t, err)

		_, err = f.engine.AddDataPoint(asset.ID, "soil", 42)
		testutil.AssertNoError(t, err)
		if got := assetValue(t, f.engine, asset.ID); got != 520 {
			t.Fatalf("expected value 520 after improvement, got %d", got)
		}

		_, err = f.engine.AddDataPoint(asset.ID, "soil", 41)
		testutil.AssertNoError(t, err)
		if got := assetValue(t, f.engine, asset.ID); got != 510 {
			t.Errorf("expected value 510 after decline, got %d", got)
		}
	})

	t.Run("new_channel_is_accepted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		dp, err := f.engine.AddDataPoint(asset.ID, "humidity", 99)
		testutil.AssertNoError(t, err)
		if dp.NeedsApproval {
			t.Error("first reading of a channel has nothing to deviate from")
		}
		if got := assetValue(t, f.engine, asset.ID); got != 1000 {
			t.Errorf("expected unchanged value 1000, got %d", got)
		}
	})

	t.Run("pending_reading_is_the_next_baseline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		_, err := f.engine.AddDataPoint(asset.ID, "temperature", 90)
		testutil.AssertNoError(t, err)

		dp, err := f.engine.AddDataPoint(asset.ID, "temperature", 91)
		testutil.AssertNoError(t, err)
		if dp.NeedsApproval || dp.Baseline != 90 {
			t.Errorf("expected comparison against the queued 90, got baseline %d needs_approval=%v", dp.Baseline, dp.NeedsApproval)
		}
		if got := assetValue(t, f.engine, asset.ID); got != 960 {
			t.Errorf("expected value 960, got %d", got)
		}
	})

	t.Run("inherits_channel_metadata", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		dp, err := f.engine.AddDataPoint(asset.ID, "temperature", 73)
		testutil.AssertNoError(t, err)
		if dp.ImpactRule != "temperature" {
			t.Errorf("expected inherited impact rule, got %q", dp.ImpactRule)
		}
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		_, err := f.engine.AddDataPoint(asset.ID, " ", 1)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		_, err := f.engine.AddDataPoint(42, "temperature", 1)
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})

	t.Run("timestamps_never_go_backwards", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ticks := []time.Time{start, start.Add(time.Minute), start.Add(-time.Hour)}
		var calls int
		clock := func() time.Time {
			ts := ticks[calls%len(ticks)]
			calls++
			return ts
		}
		f := newTestEngine(t, db, valuation.ModePreviousValue, WithClock(clock))
		asset := registerCar(t, f.engine)

		first, err := f.engine.AddDataPoint(asset.ID, "temperature", 73)
		testutil.AssertNoError(t, err)
		second, err := f.engine.AddDataPoint(asset.ID, "temperature", 74)
		testutil.AssertNoError(t, err)

		if second.Timestamp.Before(first.Timestamp) {
			t.Errorf("timestamp went backwards: %s then %s", first.Timestamp, second.Timestamp)
		}
	})
}

func TestAddDataPoint_IdealMode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	f := newTestEngine(t, db, valuation.ModeIdealValue)

	asset, err := f.engine.RegisterAsset(RegisterAssetInput{
		Name:         "Car",
		InitialValue: int64Ptr(1000),
		DataPoints: []InitialDataPoint{
			{Name: "temperature", Value: 70, IdealValue: int64Ptr(70), ImpactRule: "temperature"},
		},
	})
	testutil.AssertNoError(t, err)

	// 71 against ideal 70 is 142 bps.
	dp, err := f.engine.AddDataPoint(asset.ID, "temperature", 71)
	testutil.AssertNoError(t, err)
	if dp.NeedsApproval || dp.Baseline != 70 {
		t.Fatalf("expected auto-applied against ideal 70, got %+v", dp)
	}
	if dp.IdealValue == nil || *dp.IdealValue != 70 {
		t.Errorf("expected inherited ideal value 70, got %v", dp.IdealValue)
	}
	if got := assetValue(t, f.engine, asset.ID); got != 960 {
		t.Fatalf("expected value 960, got %d", got)
	}

	// 80 against ideal 70 is 1428 bps even though the previous reading was 71.
	dp, err = f.engine.AddDataPoint(asset.ID, "temperature", 80)
	testutil.AssertNoError(t, err)
	if !dp.NeedsApproval {
		t.Error("expected reading far from the ideal to need approval")
	}

	// Without an ideal value the reading is accepted.
	dp, err = f.engine.AddDataPoint(asset.ID, "humidity", 5000)
	testutil.AssertNoError(t, err)
	if dp.NeedsApproval {
		t.Error("expected channel without ideal value to be accepted")
	}
}

func TestApproveDataPoint(t *testing.T) {
	t.Run("applies_adjustment_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		_, err := f.engine.AddDataPoint(asset.ID, "temperature", 77)
		testutil.AssertNoError(t, err)
		_, err = f.engine.AddDataPoint(asset.ID, "temperature", 90)
		testutil.AssertNoError(t, err)

		dp, err := f.engine.ApproveDataPoint(asset.ID, 2, "approver-1")
		testutil.AssertNoError(t, err)
		if dp.NeedsApproval || dp.Resolution != models.ResolutionApproved || dp.ResolvedBy != "approver-1" || dp.ResolvedAt == nil {
			t.Errorf("unexpected resolved point %+v", dp)
		}
		// 13 degrees above 77: 13*200/5 = 520.
		if got := assetValue(t, f.engine, asset.ID); got != 280 {
			t.Errorf("expected value 280, got %d", got)
		}

		_, err = f.engine.ApproveDataPoint(asset.ID, 2, "approver-1")
		testutil.AssertAppError(t, err, "DATA_POINT_NOT_PENDING")
		if got := assetValue(t, f.engine, asset.ID); got != 280 {
			t.Errorf("second approval must not change the value, got %d", got)
		}

		if f.recorder.resolutions["approved"] != 1 {
			t.Errorf("expected one approved resolution, got %v", f.recorder.resolutions)
		}
	})

	t.Run("approved_reading_becomes_baseline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		_, err := f.engine.AddDataPoint(asset.ID, "temperature", 90)
		testutil.AssertNoError(t, err)
		_, err = f.engine.ApproveDataPoint(asset.ID, 1, "approver-1")
		testutil.AssertNoError(t, err)

		dp, err := f.engine.AddDataPoint(asset.ID, "temperature", 91)
		testutil.AssertNoError(t, err)
		if dp.Baseline != 90 || dp.NeedsApproval {
			t.Errorf("expected baseline 90 and no approval, got %+v", dp)
		}
	})

	t.Run("not_pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		_, err := f.engine.ApproveDataPoint(asset.ID, 0, "approver-1")
		testutil.AssertAppError(t, err, "DATA_POINT_NOT_PENDING")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)
		asset := registerCar(t, f.engine)

		_, err := f.engine.ApproveDataPoint(asset.ID, 9, "approver-1")
		testutil.AssertAppError(t, err, "DATA_POINT_NOT_FOUND")

		_, err = f.engine.ApproveDataPoint(asset.ID+1, 0, "approver-1")
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})
}

func TestRejectDataPoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	f := newTestEngine(t, db, valuation.ModePreviousValue)
	asset := registerCar(t, f.engine)

	_, err := f.engine.AddDataPoint(asset.ID, "temperature", 90)
	testutil.AssertNoError(t, err)

	dp, err := f.engine.RejectDataPoint(asset.ID, 1, "approver-1")
	testutil.AssertNoError(t, err)
	testutil.AssertDataPointState(t, dp, false, models.ResolutionRejected)
	if got := assetValue(t, f.engine, asset.ID); got != 1000 {
		t.Errorf("rejection must not change the value, got %d", got)
	}

	_, err = f.engine.RejectDataPoint(asset.ID, 1, "approver-1")
	testutil.AssertAppError(t, err, "DATA_POINT_NOT_PENDING")
	_, err = f.engine.ApproveDataPoint(asset.ID, 1, "approver-1")
	testutil.AssertAppError(t, err, "DATA_POINT_NOT_PENDING")

	pending, err := f.engine.ListPending(pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if pending.TotalItems != 0 {
		t.Errorf("expected empty pending queue, got %d", pending.TotalItems)
	}
}

func TestAddDataPoint_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	f := newTestEngine(t, db, valuation.ModePreviousValue)
	car := registerCar(t, f.engine)
	field, err := f.engine.RegisterAsset(RegisterAssetInput{Name: "Field"})
	testutil.AssertNoError(t, err)

	const perAsset = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*perAsset)
	for i := 0; i < perAsset; i++ {
		for _, id := range []uint64{car.ID, field.ID} {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				if _, err := f.engine.AddDataPoint(id, "mileage", 100); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent add failed: %v", err)
	}

	got, err := f.engine.GetAsset(car.ID)
	testutil.AssertNoError(t, err)
	if len(got.DataPoints) != perAsset+1 {
		t.Fatalf("expected %d points, got %d", perAsset+1, len(got.DataPoints))
	}
	for i, dp := range got.DataPoints {
		if dp.Index != i {
			t.Errorf("expected dense index %d, got %d", i, dp.Index)
		}
	}

	got, err = f.engine.GetAsset(field.ID)
	testutil.AssertNoError(t, err)
	if len(got.DataPoints) != perAsset {
		t.Errorf("expected %d points on second asset, got %d", perAsset, len(got.DataPoints))
	}
}

func TestAssetLocks(t *testing.T) {
	locks := newAssetLocks()

	release := locks.lock(1)
	if locks.size() != 1 {
		t.Fatalf("expected 1 tracked lock, got %d", locks.size())
	}

	done := make(chan struct{})
	go func() {
		r := locks.lock(2)
		r()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different asset should not block")
	}

	release()
	if locks.size() != 0 {
		t.Errorf("expected released locks to be forgotten, got %d", locks.size())
	}
}

func TestValuationAtInt64Extremes(t *testing.T) {
	t.Run("span_wider_than_int64_is_queued", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:       "Tank",
			DataPoints: []InitialDataPoint{{Name: "pressure", Value: -math.MaxInt64 + 10}},
		})
		testutil.AssertNoError(t, err)

		dp, err := f.engine.AddDataPoint(asset.ID, "pressure", math.MaxInt64-10)
		testutil.AssertNoError(t, err)
		testutil.AssertDataPointState(t, dp, true, models.ResolutionPending)
		if got := assetValue(t, f.engine, asset.ID); got != 0 {
			t.Errorf("expected queued reading to leave value at 0, got %d", got)
		}

		// The adjustment is larger than int64 can hold, so approving fails
		// and the reading stays in the queue.
		_, err = f.engine.ApproveDataPoint(asset.ID, dp.Index, "approver-1")
		testutil.AssertAppError(t, err, "VALUATION_OUT_OF_RANGE")

		still, err := f.engine.GetDataPoint(asset.ID, dp.Index)
		testutil.AssertNoError(t, err)
		testutil.AssertDataPointState(t, still, true, models.ResolutionPending)
		if got := assetValue(t, f.engine, asset.ID); got != 0 {
			t.Errorf("expected value to stay at 0, got %d", got)
		}
	})

	t.Run("auto_applied_underflow_is_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:         "Tank",
			InitialValue: int64Ptr(math.MinInt64 + 5),
			DataPoints:   []InitialDataPoint{{Name: "pressure", Value: 1000}},
		})
		testutil.AssertNoError(t, err)

		_, err = f.engine.AddDataPoint(asset.ID, "pressure", 1050)
		testutil.AssertAppError(t, err, "VALUATION_OUT_OF_RANGE")

		got, err := f.engine.GetAsset(asset.ID)
		testutil.AssertNoError(t, err)
		if len(got.DataPoints) != 1 {
			t.Errorf("expected the failed reading to be rolled back, got %d data points", len(got.DataPoints))
		}
		if got.Value != math.MinInt64+5 {
			t.Errorf("expected value to stay at %d, got %d", int64(math.MinInt64+5), got.Value)
		}
	})

	t.Run("adjustment_landing_on_min_int64", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		f := newTestEngine(t, db, valuation.ModePreviousValue)

		asset, err := f.engine.RegisterAsset(RegisterAssetInput{
			Name:         "Tank",
			InitialValue: int64Ptr(math.MinInt64 + 50),
			DataPoints:   []InitialDataPoint{{Name: "pressure", Value: 1000}},
		})
		testutil.AssertNoError(t, err)

		dp, err := f.engine.AddDataPoint(asset.ID, "pressure", 1050)
		testutil.AssertNoError(t, err)
		testutil.AssertDataPointState(t, dp, false, models.ResolutionAutoApplied)
		if got := assetValue(t, f.engine, asset.ID); got != math.MinInt64 {
			t.Errorf("expected value %d, got %d", int64(math.MinInt64), got)
		}
	})
}
