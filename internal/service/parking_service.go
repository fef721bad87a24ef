package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/telemetry"
)

var ErrLotFull = errors.New("no parking spot is available")
var ErrPlateAlreadyParked = errors.New("vehicle is already parked")
var ErrInvalidVehicle = errors.New("invalid vehicle")

var tracer = otel.Tracer("smart_parking_lot/internal/service")

// LotNotifier receives lot events, typically the WebSocket hub.
type LotNotifier interface {
	BroadcastLotEvent(event domain.LotEventNotification)
}

// ParkingSettings are the tunables of the ParkingService.
type ParkingSettings struct {
	Tariff Tariff
	// OccupancyWarning is the occupancy rate in percent at which a
	// lot_nearly_full event is raised. Zero disables it.
	OccupancyWarning float64
	// LongStay flags current vehicles parked at least this long. Zero disables it.
	LongStay time.Duration
}

// ParkingService runs the compound lot operations (assign, occupy and record;
// record exit and release) as single critical sections so the layout and the
// history never disagree.
type ParkingService struct {
	mu       sync.Mutex
	layout   *LayoutStore
	assigner *SpotAssigner
	tracker  *OccupancyTracker
	tariff   atomic.Pointer[Tariff]
	settings ParkingSettings

	notifier LotNotifier
	metrics  *telemetry.ParkingInstruments
	now      func() time.Time
}

func NewParkingService(layout *LayoutStore, assigner *SpotAssigner, tracker *OccupancyTracker,
	settings ParkingSettings, opts ...Option) *ParkingService {
	o := buildOptions(opts)
	s := &ParkingService{
		layout:   layout,
		assigner: assigner,
		tracker:  tracker,
		settings: settings,
		notifier: o.notifier,
		metrics:  o.instruments,
		now:      o.now,
	}
	tariff := settings.Tariff
	s.tariff.Store(&tariff)
	return s
}

// SetNotifier attaches the event sink after construction. The WebSocket hub is
// created after the service in main.
func (s *ParkingService) SetNotifier(n LotNotifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *ParkingService) Tariff() Tariff {
	return *s.tariff.Load()
}

// SetTariff replaces the pricing used for exits and revenue reports.
func (s *ParkingService) SetTariff(t Tariff) {
	s.tariff.Store(&t)
}

func (s *ParkingService) LotName() string {
	return s.layout.Layout().Name
}

func (s *ParkingService) notify(ctx context.Context, event domain.LotEventNotification) {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.LotName = s.LotName()
	event.Timestamp = s.now()
	n.BroadcastLotEvent(event)
	logging.Debugf(ctx, "ParkingService: broadcast %s", event.EventType)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *ParkingService) vehicleFromDTO(dto domain.VehicleEntryDTO) (domain.VehicleInfo, error) {
	plate := domain.NormalizePlate(dto.LicensePlate)
	if plate == "" {
		return domain.VehicleInfo{}, fmt.Errorf("%w: license plate is required", ErrInvalidVehicle)
	}
	preferred := domain.SpotStandard
	if dto.PreferredType != "" {
		t, err := domain.ParseSpotType(dto.PreferredType)
		if err != nil {
			return domain.VehicleInfo{}, fmt.Errorf("%w: %w", ErrInvalidVehicle, err)
		}
		preferred = t
	}
	return domain.VehicleInfo{
		LicensePlate:   plate,
		PreferredType:  preferred,
		HandicapPermit: dto.HandicapPermit,
		Notes:          dto.Notes,
	}, nil
}

// rejectIfPlateAlreadyParked must be called with mu held.
func (s *ParkingService) rejectIfPlateAlreadyParked(plate string) error {
	if spot, ok := s.layout.FindByPlate(plate); ok {
		return fmt.Errorf("%w: %s is in spot %d", ErrPlateAlreadyParked, plate, spot.ID)
	}
	return nil
}

// Enter assigns a spot to the vehicle and opens its session.
func (s *ParkingService) Enter(ctx context.Context, dto domain.VehicleEntryDTO) (_ *domain.EntryResult, err error) {
	ctx, span := tracer.Start(ctx, "ParkingService.Enter")
	defer func() { endSpan(span, err) }()

	vehicle, err := s.vehicleFromDTO(dto)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("vehicle.plate", vehicle.LicensePlate),
		attribute.String("vehicle.preferred_type", string(vehicle.PreferredType)),
		attribute.Bool("vehicle.handicap_permit", vehicle.HandicapPermit),
	)

	result, err := s.enter(ctx, vehicle)
	if err != nil {
		var reason string
		switch {
		case errors.Is(err, ErrLotFull):
			reason = "lot_full"
		case errors.Is(err, ErrPlateAlreadyParked):
			reason = "already_parked"
		}
		if reason != "" {
			logging.Warnf(ctx, "ParkingService: entry of %s rejected: %v", vehicle.LicensePlate, err)
			s.metrics.RecordRejection(ctx, reason)
			s.notify(ctx, domain.LotEventNotification{
				EventType:     domain.LotEventEntryRejected,
				LicensePlate:  vehicle.LicensePlate,
				OccupancyRate: s.layout.GetOccupancyStatus().OccupancyRate,
				Message:       err.Error(),
			})
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("spot.id", result.SpotID), attribute.String("spot.type", string(result.SpotType)))
	logging.Infof(ctx, "ParkingService: %s parked in spot %d (%s), occupancy %.1f%%",
		vehicle.LicensePlate, result.SpotID, result.SpotType, result.OccupancyRate)
	s.metrics.RecordEntry(ctx, result.SpotType)
	s.notify(ctx, domain.LotEventNotification{
		EventType:     domain.LotEventVehicleEntered,
		SpotID:        result.SpotID,
		SpotType:      result.SpotType,
		LicensePlate:  vehicle.LicensePlate,
		OccupancyRate: result.OccupancyRate,
	})
	if s.settings.OccupancyWarning > 0 && result.OccupancyRate >= s.settings.OccupancyWarning {
		logging.Warnf(ctx, "ParkingService: lot is %.1f%% full", result.OccupancyRate)
		s.notify(ctx, domain.LotEventNotification{
			EventType:     domain.LotEventNearlyFull,
			OccupancyRate: result.OccupancyRate,
			Message:       fmt.Sprintf("lot is %.1f%% full", result.OccupancyRate),
		})
	}
	return result, nil
}

func (s *ParkingService) enter(ctx context.Context, vehicle domain.VehicleInfo) (*domain.EntryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejectIfPlateAlreadyParked(vehicle.LicensePlate); err != nil {
		return nil, err
	}

	spotID, ok, err := s.assigner.AutoAssignSpot(ctx, vehicle)
	if err != nil {
		return nil, fmt.Errorf("ParkingService.Enter: %w", err)
	}
	if !ok {
		return nil, ErrLotFull
	}

	entry, err := s.tracker.RecordEntry(ctx, spotID, vehicle)
	if err != nil {
		if rerr := s.layout.ReleaseSpot(ctx, spotID); rerr != nil {
			logging.Errorf(ctx, "ParkingService: could not free spot %d after a failed entry record: %v", spotID, rerr)
		}
		return nil, fmt.Errorf("ParkingService.Enter: %w", err)
	}

	return &domain.EntryResult{
		SpotID:        spotID,
		SpotType:      entry.SpotType,
		Session:       entry,
		OccupancyRate: s.layout.GetOccupancyStatus().OccupancyRate,
	}, nil
}

// Exit closes the session in spotID, frees the spot and prices the stay.
func (s *ParkingService) Exit(ctx context.Context, spotID int) (_ *domain.ExitReceipt, err error) {
	ctx, span := tracer.Start(ctx, "ParkingService.Exit", trace.WithAttributes(attribute.Int("spot.id", spotID)))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	receipt, err := s.exitLocked(ctx, spotID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.afterExit(ctx, receipt)
	return receipt, nil
}

// ExitByPlate is Exit for the spot currently holding plate.
func (s *ParkingService) ExitByPlate(ctx context.Context, plate string) (_ *domain.ExitReceipt, err error) {
	plate = domain.NormalizePlate(plate)
	ctx, span := tracer.Start(ctx, "ParkingService.ExitByPlate", trace.WithAttributes(attribute.String("vehicle.plate", plate)))
	defer func() { endSpan(span, err) }()

	if plate == "" {
		return nil, fmt.Errorf("%w: license plate is required", ErrInvalidVehicle)
	}

	s.mu.Lock()
	spot, ok := s.layout.FindByPlate(plate)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", repository.ErrNoActiveSession, plate)
	}
	receipt, err := s.exitLocked(ctx, spot.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.afterExit(ctx, receipt)
	return receipt, nil
}

func (s *ParkingService) exitLocked(ctx context.Context, spotID int) (*domain.ExitReceipt, error) {
	spot, err := s.layout.GetSpotInfo(spotID)
	if err != nil {
		return nil, err
	}
	if !spot.Occupied {
		return nil, fmt.Errorf("%w: %d", ErrSpotAlreadyFree, spotID)
	}

	closed, err := s.tracker.RecordExit(ctx, spotID)
	if err != nil {
		return nil, fmt.Errorf("ParkingService.Exit: %w", err)
	}
	if err := s.layout.ReleaseSpot(ctx, spotID); err != nil {
		if closed != nil {
			if rerr := s.tracker.reopen(ctx, closed.SessionID); rerr != nil {
				logging.Errorf(ctx, "ParkingService: could not reopen session %s after a failed release: %v", closed.SessionID, rerr)
			}
		}
		return nil, fmt.Errorf("ParkingService.Exit: %w", err)
	}

	receipt := &domain.ExitReceipt{
		SpotID:       spotID,
		SpotType:     spot.Type,
		LicensePlate: spot.Vehicle.LicensePlate,
		EntryTime:    spot.EntryTime.Time,
		ExitTime:     s.now(),
	}
	if closed != nil {
		receipt.SessionID = closed.SessionID
		receipt.EntryTime = closed.EntryTime
		receipt.ExitTime = closed.ExitTime.Time
	} else {
		logging.Warnf(ctx, "ParkingService: spot %d had no open session, pricing from the spot entry time", spotID)
	}

	tariff := s.Tariff()
	receipt.DurationMinutes = minutes(receipt.ExitTime.Sub(receipt.EntryTime))
	receipt.Fee = tariff.Fee(receipt.EntryTime, receipt.ExitTime)
	receipt.Currency = tariff.Currency
	return receipt, nil
}

func (s *ParkingService) afterExit(ctx context.Context, receipt *domain.ExitReceipt) {
	rate := s.layout.GetOccupancyStatus().OccupancyRate
	logging.Infof(ctx, "ParkingService: %s left spot %d after %.1f min, fee %s %.2f",
		receipt.LicensePlate, receipt.SpotID, receipt.DurationMinutes, receipt.Currency, receipt.Fee)
	s.metrics.RecordExit(ctx, receipt.SpotType, receipt.DurationMinutes, receipt.Fee)
	s.notify(ctx, domain.LotEventNotification{
		EventType:     domain.LotEventVehicleExited,
		SpotID:        receipt.SpotID,
		SpotType:      receipt.SpotType,
		LicensePlate:  receipt.LicensePlate,
		OccupancyRate: rate,
		Fee:           receipt.Fee,
	})
}

// ResetLot closes every open session and rebuilds an empty lot.
func (s *ParkingService) ResetLot(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "ParkingService.ResetLot")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	closed, err := s.tracker.CloseOpenEntries(ctx)
	if err == nil {
		err = s.layout.CreateLayout(ctx)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("ParkingService.ResetLot: %w", err)
	}

	logging.Infof(ctx, "ParkingService: lot reset, %d open sessions closed", closed)
	s.notify(ctx, domain.LotEventNotification{
		EventType: domain.LotEventReset,
		Message:   fmt.Sprintf("%d open sessions closed", closed),
	})
	return nil
}

// ClearHistory drops every session. Parked vehicles stay where they are.
func (s *ParkingService) ClearHistory(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "ParkingService.ClearHistory")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	err = s.tracker.ClearHistory(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	logging.Infof(ctx, "ParkingService: history cleared")
	s.notify(ctx, domain.LotEventNotification{
		EventType:     domain.LotEventHistoryCleared,
		OccupancyRate: s.layout.GetOccupancyStatus().OccupancyRate,
	})
	return nil
}

func (s *ParkingService) Spots() []domain.ParkingSpot {
	return s.layout.Spots()
}

func (s *ParkingService) Spot(spotID int) (domain.ParkingSpot, error) {
	return s.layout.GetSpotInfo(spotID)
}

func (s *ParkingService) AvailableSpots(filter *domain.SpotType) []int {
	return s.layout.GetAvailableSpots(filter)
}

func (s *ParkingService) Status() domain.OccupancyStatus {
	return s.layout.GetOccupancyStatus()
}

// CurrentVehicles lists parked vehicles by spot ID.
func (s *ParkingService) CurrentVehicles() []domain.CurrentVehicle {
	now := s.now()
	vehicles := []domain.CurrentVehicle{}
	for _, spot := range s.layout.Spots() {
		if !spot.Occupied {
			continue
		}
		elapsed := now.Sub(spot.EntryTime.Time)
		vehicles = append(vehicles, domain.CurrentVehicle{
			SpotID:         spot.ID,
			SpotType:       spot.Type,
			LicensePlate:   spot.Vehicle.LicensePlate,
			EntryTime:      spot.EntryTime.Time,
			ElapsedMinutes: minutes(elapsed),
			LongStay:       s.settings.LongStay > 0 && elapsed >= s.settings.LongStay,
			Notes:          spot.Vehicle.Notes,
		})
	}
	return vehicles
}

func (s *ParkingService) History(filter domain.HistoryFilter) []domain.HistoryEntry {
	return s.tracker.History(filter)
}

func (s *ParkingService) Statistics(period domain.Period) domain.Statistics {
	return s.tracker.GetStatistics(period)
}

func (s *ParkingService) Revenue(period domain.Period) domain.RevenueReport {
	return s.tracker.GetRevenue(period, s.Tariff())
}

// SessionFee prices a history entry with the current tariff. Open sessions
// are not charged yet.
func (s *ParkingService) SessionFee(entry domain.HistoryEntry) (float64, bool) {
	if entry.Open() {
		return 0, false
	}
	return s.Tariff().Fee(entry.EntryTime, entry.ExitTime.Time), true
}
