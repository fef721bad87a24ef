package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/google/uuid"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
)

// ErrMalformedEvent marks gate events that can never be processed. The
// consumer drops them instead of waiting for redelivery.
var ErrMalformedEvent = errors.New("malformed gate event")
var ErrGateControlDisabled = errors.New("gate control is not configured")
var ErrInvalidGateCommand = errors.New("invalid barrier command")

// BarrierPublisher delivers a command to a gate controller.
type BarrierPublisher interface {
	PublishBarrierCommand(ctx context.Context, cmd domain.BarrierCommandPayload) error
}

// IoTPublishAPI is the subset of the IoT data plane client used here.
type IoTPublishAPI interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// IoTBarrierPublisher publishes commands over AWS IoT MQTT to
// <prefix>/gates/<gate_id>/command.
type IoTBarrierPublisher struct {
	client      IoTPublishAPI
	topicPrefix string
}

func NewIoTBarrierPublisher(client IoTPublishAPI, topicPrefix string) *IoTBarrierPublisher {
	return &IoTBarrierPublisher{client: client, topicPrefix: strings.TrimSuffix(topicPrefix, "/")}
}

func (p *IoTBarrierPublisher) Topic(gateID string) string {
	return fmt.Sprintf("%s/gates/%s/command", p.topicPrefix, gateID)
}

func (p *IoTBarrierPublisher) PublishBarrierCommand(ctx context.Context, cmd domain.BarrierCommandPayload) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal barrier command: %w", err)
	}
	topic := p.Topic(cmd.GateID)
	_, err = p.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	logging.Infof(ctx, "IoTBarrierPublisher: sent '%s' (request %s) to %s", cmd.Command, cmd.RequestID, topic)
	return nil
}

// GateService turns gate camera events into entries and exits and opens the
// barrier when the lot accepts the vehicle.
type GateService struct {
	parking   *ParkingService
	lpr       *LPRService
	publisher BarrierPublisher
}

// NewGateService accepts a nil lpr (events must then carry a plate) and a nil
// publisher (barriers are not driven).
func NewGateService(parking *ParkingService, lpr *LPRService, publisher BarrierPublisher) *GateService {
	return &GateService{parking: parking, lpr: lpr, publisher: publisher}
}

// HandleGateEvent processes one queued event. A nil return means the message
// can be deleted: it was handled or the lot refused the vehicle. Errors
// wrapping ErrMalformedEvent can be deleted too; any other error is transient.
func (s *GateService) HandleGateEvent(ctx context.Context, body string) (err error) {
	ctx, span := tracer.Start(ctx, "GateService.HandleGateEvent")
	defer func() { endSpan(span, err) }()

	var event domain.GateCameraEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.GateID == "" {
		return fmt.Errorf("%w: gate_id is required", ErrMalformedEvent)
	}
	if event.Direction != domain.GateDirectionEntry && event.Direction != domain.GateDirectionExit {
		return fmt.Errorf("%w: unknown direction %q", ErrMalformedEvent, event.Direction)
	}
	logging.Infof(ctx, "GateService: %s event %s at gate %s", event.Direction, event.EventID, event.GateID)

	plate, err := s.resolvePlate(ctx, event)
	if err != nil {
		return err
	}
	if plate == "" {
		logging.Warnf(ctx, "GateService: no readable plate in event %s, waiting for the operator", event.EventID)
		s.parking.notify(ctx, domain.LotEventNotification{
			EventType:     domain.LotEventEntryRejected,
			OccupancyRate: s.parking.Status().OccupancyRate,
			Message:       fmt.Sprintf("plate not readable at gate %s", event.GateID),
		})
		return nil
	}

	if event.Direction == domain.GateDirectionEntry {
		return s.handleEntry(ctx, event, plate)
	}
	return s.handleExit(ctx, event, plate)
}

func (s *GateService) resolvePlate(ctx context.Context, event domain.GateCameraEvent) (string, error) {
	if plate := domain.NormalizePlate(event.Plate); plate != "" {
		return plate, nil
	}
	if event.ImageBase64 == "" {
		return "", fmt.Errorf("%w: neither plate nor image present", ErrMalformedEvent)
	}
	image, err := base64.StdEncoding.DecodeString(event.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("%w: image is not valid base64: %v", ErrMalformedEvent, err)
	}
	if s.lpr == nil || !s.lpr.Enabled() {
		logging.Warnf(ctx, "GateService: event %s only has an image but detection is disabled", event.EventID)
		return "", nil
	}
	candidate, ok, err := s.lpr.Recognize(ctx, image, domain.SourceGate, event.EventID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return candidate.Plate, nil
}

func (s *GateService) handleEntry(ctx context.Context, event domain.GateCameraEvent, plate string) error {
	result, err := s.parking.Enter(ctx, domain.VehicleEntryDTO{
		LicensePlate:   plate,
		PreferredType:  event.PreferredType,
		HandicapPermit: event.HandicapPermit,
		Notes:          "gate " + event.GateID,
	})
	if err != nil {
		if errors.Is(err, ErrLotFull) || errors.Is(err, ErrPlateAlreadyParked) || errors.Is(err, ErrInvalidVehicle) {
			logging.Warnf(ctx, "GateService: entry of %s at gate %s refused: %v", plate, event.GateID, err)
			return nil
		}
		return err
	}
	s.openBarrier(ctx, event, plate, result.SpotID)
	return nil
}

func (s *GateService) handleExit(ctx context.Context, event domain.GateCameraEvent, plate string) error {
	receipt, err := s.parking.ExitByPlate(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) || errors.Is(err, ErrSpotAlreadyFree) {
			logging.Warnf(ctx, "GateService: exit of %s at gate %s refused: %v", plate, event.GateID, err)
			return nil
		}
		return err
	}
	s.openBarrier(ctx, event, plate, receipt.SpotID)
	return nil
}

// openBarrier failures are logged only; the session is already recorded and
// the operator can open the gate by hand.
func (s *GateService) openBarrier(ctx context.Context, event domain.GateCameraEvent, plate string, spotID int) {
	if s.publisher == nil {
		return
	}
	cmd := domain.BarrierCommandPayload{
		Command:   domain.BarrierOpen,
		RequestID: uuid.NewString(),
		GateID:    event.GateID,
		Plate:     plate,
		SpotID:    spotID,
	}
	if err := s.publisher.PublishBarrierCommand(ctx, cmd); err != nil {
		logging.Errorf(ctx, "GateService: could not open gate %s for %s: %v", event.GateID, plate, err)
	}
}

// SendBarrierCommand lets an operator drive a barrier directly.
func (s *GateService) SendBarrierCommand(ctx context.Context, gateID, command string) (*domain.BarrierCommandPayload, error) {
	if s.publisher == nil {
		return nil, ErrGateControlDisabled
	}
	gateID = strings.TrimSpace(gateID)
	if gateID == "" {
		return nil, fmt.Errorf("%w: gate id is required", ErrInvalidGateCommand)
	}
	if command != domain.BarrierOpen && command != domain.BarrierClose {
		return nil, fmt.Errorf("%w %q", ErrInvalidGateCommand, command)
	}
	cmd := domain.BarrierCommandPayload{
		Command:   command,
		RequestID: uuid.NewString(),
		GateID:    gateID,
	}
	if err := s.publisher.PublishBarrierCommand(ctx, cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
