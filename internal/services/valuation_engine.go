package services

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/events"
	"assetmanager/internal/logger"
	"assetmanager/internal/metrics"
	"assetmanager/internal/models"
	"assetmanager/internal/pagination"
	"assetmanager/internal/valuation"
)

// EngineConfig tunes the deviation check.
type EngineConfig struct {
	ThresholdBps int64
	Mode         valuation.Mode
}

// EngineOption customizes a valuation engine.
type EngineOption func(*valuationEngine)

// WithClock replaces the time source used to stamp readings and resolutions.
func WithClock(now func() time.Time) EngineOption {
	return func(e *valuationEngine) {
		e.now = now
	}
}

// valuationEngine applies readings to asset valuations and runs the
// pending-approval state machine on top of the registry store.
type valuationEngine struct {
	store     *RegistryStore
	checker   *valuation.Checker
	mode      valuation.Mode
	publisher events.Publisher
	recorder  metrics.Recorder
	locks     *assetLocks
	now       func() time.Time
	log       *zap.SugaredLogger
}

// NewValuationEngine creates an AssetServicer backed by store.
// A nil publisher or recorder discards notifications or observations.
func NewValuationEngine(
	store *RegistryStore,
	cfg EngineConfig,
	publisher events.Publisher,
	recorder metrics.Recorder,
	opts ...EngineOption,
) (AssetServicer, error) {
	checker, err := valuation.NewChecker(cfg.ThresholdBps)
	if err != nil {
		return nil, err
	}
	mode, err := valuation.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	e := &valuationEngine{
		store:     store,
		checker:   checker,
		mode:      mode,
		publisher: publisher,
		recorder:  recorder,
		locks:     newAssetLocks(),
		now:       time.Now,
		log:       logger.Named("valuation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterAsset creates an asset together with its initial readings.
// Initial readings are applied as recorded; a reading the caller marks as
// needing approval enters the pending queue without a notification.
func (e *valuationEngine) RegisterAsset(input RegisterAssetInput) (*models.Asset, error) {
	now := e.now().UTC()
	points := make([]models.DataPoint, 0, len(input.DataPoints))
	seen := make(map[string]*models.DataPoint)

	for _, in := range input.DataPoints {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "data point name is required")
		}
		if !valuation.IsKnownRule(in.ImpactRule) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown impact rule: "+in.ImpactRule)
		}

		dp := models.DataPoint{
			Name:          name,
			Value:         in.Value,
			IdealValue:    in.IdealValue,
			ImpactRule:    in.ImpactRule,
			Baseline:      in.Value,
			Timestamp:     now,
			NeedsApproval: in.NeedsApproval,
			Resolution:    models.ResolutionInitial,
		}

		prev := seen[name]
		if prev != nil {
			if dp.ImpactRule == "" {
				dp.ImpactRule = prev.ImpactRule
			}
			if dp.IdealValue == nil {
				dp.IdealValue = prev.IdealValue
			}
		}
		switch {
		case e.mode == valuation.ModeIdealValue && dp.IdealValue != nil:
			dp.Baseline = *dp.IdealValue
		case prev != nil:
			dp.Baseline = prev.Value
		}
		if dp.NeedsApproval {
			dp.Resolution = models.ResolutionPending
		}

		points = append(points, dp)
		seen[name] = &points[len(points)-1]
	}

	id, err := e.store.CreateAsset(NewAsset{
		Name:         input.Name,
		Handle:       input.Handle,
		InitialValue: input.InitialValue,
		DataPoints:   points,
	})
	if err != nil {
		return nil, err
	}

	e.log.Infow("asset registered", "asset_id", id, "data_points", len(points))
	return e.store.GetAsset(id)
}

// GetAsset returns an asset with all of its readings.
func (e *valuationEngine) GetAsset(assetID uint64) (*models.Asset, error) {
	return e.store.GetAsset(assetID)
}

// NextAssetID returns the id the next registration will receive.
func (e *valuationEngine) NextAssetID() (uint64, error) {
	return e.store.NextAssetID()
}

// GetDataPoint returns one reading by its index within the asset.
func (e *valuationEngine) GetDataPoint(assetID uint64, index int) (*models.DataPoint, error) {
	return e.store.GetDataPoint(assetID, index)
}

// AddDataPoint records a reading. Readings within tolerance adjust the asset
// value immediately; the rest are held for approval and announced once the
// transaction commits.
func (e *valuationEngine) AddDataPoint(assetID uint64, name string, value int64) (*models.DataPoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "data point name is required")
	}

	release := e.locks.lock(assetID)
	defer release()

	var (
		point    *models.DataPoint
		decision valuation.Decision
		queued   *models.QueueEvent
	)

	err := e.store.Transaction(func(tx *RegistryStore) error {
		asset, err := tx.findAssetForUpdate(assetID)
		if err != nil {
			return err
		}

		dp := &models.DataPoint{Name: name, Value: value}
		latest, err := tx.LatestDataPoint(assetID, name)
		if err != nil {
			return err
		}
		if latest != nil {
			dp.ImpactRule = latest.ImpactRule
			dp.IdealValue = latest.IdealValue
		}

		decision, err = e.decide(tx, assetID, dp)
		if err != nil {
			return err
		}
		dp.Baseline = decision.Baseline
		dp.NeedsApproval = decision.NeedsApproval
		dp.Resolution = models.ResolutionAutoApplied
		if dp.NeedsApproval {
			dp.Resolution = models.ResolutionPending
		}

		dp.Timestamp, err = e.timestamp(tx, assetID)
		if err != nil {
			return err
		}

		if _, err := tx.AppendDataPoint(assetID, dp); err != nil {
			return err
		}

		if dp.NeedsApproval {
			queued = &models.QueueEvent{
				AssetID: assetID,
				Index:   dp.Index,
				Name:    dp.Name,
				Value:   dp.Value,
			}
			if err := tx.RecordQueueEvent(queued); err != nil {
				return err
			}
		} else {
			if err := applyReading(tx, asset, dp); err != nil {
				return err
			}
		}

		point = dp
		return nil
	})
	if err != nil {
		return nil, err
	}

	ratio, _ := decision.RatioBps.Float64()
	if queued == nil {
		e.recorder.ObserveSubmission(metrics.OutcomeAutoApplied, ratio)
		return point, nil
	}

	e.recorder.ObserveSubmission(metrics.OutcomeQueued, ratio)
	e.log.Infow("data point queued for approval",
		"asset_id", assetID,
		"index", point.Index,
		"name", point.Name,
		"value", point.Value,
		"baseline", point.Baseline,
		"deviation_bps", decision.RatioBps.StringFixed(2),
		"sequence", queued.Sequence,
	)
	e.publisher.Publish(events.DataPointQueued{
		AssetID:  assetID,
		Index:    point.Index,
		Name:     point.Name,
		Value:    point.Value,
		Sequence: queued.Sequence,
		QueuedAt: queued.CreatedAt,
	})
	return point, nil
}

// ApproveDataPoint applies a pending reading to the asset valuation.
func (e *valuationEngine) ApproveDataPoint(assetID uint64, index int, actorID string) (*models.DataPoint, error) {
	return e.resolve(assetID, index, actorID, models.ResolutionApproved)
}

// RejectDataPoint discards a pending reading without touching the valuation.
func (e *valuationEngine) RejectDataPoint(assetID uint64, index int, actorID string) (*models.DataPoint, error) {
	return e.resolve(assetID, index, actorID, models.ResolutionRejected)
}

// ListPending returns readings awaiting approval.
func (e *valuationEngine) ListPending(page pagination.PageRequest) (*pagination.PageResponse[models.DataPoint], error) {
	return e.store.ListPending(page)
}

// ListQueueEvents replays queued notifications after a sequence number.
func (e *valuationEngine) ListQueueEvents(after uint64, page pagination.PageRequest) (*pagination.PageResponse[models.QueueEvent], error) {
	return e.store.ListQueueEvents(after, page)
}

func (e *valuationEngine) resolve(assetID uint64, index int, actorID string, resolution models.Resolution) (*models.DataPoint, error) {
	release := e.locks.lock(assetID)
	defer release()

	var resolved *models.DataPoint
	err := e.store.Transaction(func(tx *RegistryStore) error {
		dp, err := tx.GetDataPoint(assetID, index)
		if err != nil {
			return err
		}
		if !dp.IsPending() {
			return apperrors.ErrDataPointNotPending
		}

		if resolution == models.ResolutionApproved {
			asset, err := tx.findAssetForUpdate(assetID)
			if err != nil {
				return err
			}
			if err := applyReading(tx, asset, dp); err != nil {
				return err
			}
		}

		resolved, err = tx.ResolveDataPoint(assetID, index, resolution, actorID, e.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	e.recorder.ObserveResolution(string(resolution))
	e.log.Infow("data point resolved",
		"asset_id", assetID,
		"index", index,
		"resolution", resolution,
		"actor_id", actorID,
	)
	return resolved, nil
}

// applyReading moves the asset value by the rule adjustment for dp. A result
// outside the int64 range fails the transaction and leaves dp untouched.
func applyReading(tx *RegistryStore, asset *models.Asset, dp *models.DataPoint) error {
	next, err := ruleFor(dp.ImpactRule).Apply(asset.Value, dp.Value, dp.Baseline)
	if err != nil {
		if errors.Is(err, valuation.ErrOutOfRange) {
			return apperrors.ErrValuationOutOfRange
		}
		return err
	}
	return tx.SetAssetValue(asset.ID, next)
}

// decide picks the baseline for dp according to the engine mode and runs
// the deviation check against it.
func (e *valuationEngine) decide(tx *RegistryStore, assetID uint64, dp *models.DataPoint) (valuation.Decision, error) {
	if e.mode == valuation.ModeIdealValue {
		if dp.IdealValue == nil {
			return valuation.Accept(dp.Value), nil
		}
		return e.checker.Check(dp.Value, *dp.IdealValue), nil
	}

	prev, err := tx.LatestDataPoint(assetID, dp.Name)
	if err != nil {
		return valuation.Decision{}, err
	}
	if prev == nil {
		return valuation.Accept(dp.Value), nil
	}
	return e.checker.Check(dp.Value, prev.Value), nil
}

// timestamp returns the current time, never earlier than the asset's last reading.
func (e *valuationEngine) timestamp(tx *RegistryStore, assetID uint64) (time.Time, error) {
	ts := e.now().UTC()
	last, err := tx.LastDataPoint(assetID)
	if err != nil {
		return time.Time{}, err
	}
	if last != nil && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}
	return ts, nil
}

func ruleFor(name string) valuation.Rule {
	if rule, ok := valuation.Lookup(name); ok {
		return rule
	}
	return valuation.DefaultRule
}
