package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
)

var ErrDetectionDisabled = errors.New("plate detection is not configured")

// PlateDetector reads license plate candidates from an image.
type PlateDetector interface {
	DetectPlates(ctx context.Context, image []byte) ([]domain.PlateCandidate, error)
}

// TextDetectionAPI is the subset of the Rekognition client used here.
type TextDetectionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionDetector finds plates with Rekognition DetectText.
type RekognitionDetector struct {
	client  TextDetectionAPI
	pattern *regexp.Regexp
}

// NewRekognitionDetector keeps only texts matching pattern once cleaned; an
// empty pattern accepts any non-empty text.
func NewRekognitionDetector(client TextDetectionAPI, pattern string) (*RekognitionDetector, error) {
	d := &RekognitionDetector{client: client}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("plate pattern %q: %w", pattern, err)
		}
		d.pattern = re
	}
	return d, nil
}

func (d *RekognitionDetector) DetectPlates(ctx context.Context, image []byte) ([]domain.PlateCandidate, error) {
	out, err := d.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectText: %w", err)
	}
	logging.Debugf(ctx, "RekognitionDetector: %d text blocks", len(out.TextDetections))

	var candidates []domain.PlateCandidate
	for _, td := range out.TextDetections {
		if td.Type != types.TextTypesLine && td.Type != types.TextTypesWord {
			continue
		}
		if td.DetectedText == nil || td.Confidence == nil {
			continue
		}
		plate := CleanPlateText(*td.DetectedText)
		if plate == "" {
			continue
		}
		if d.pattern != nil && !d.pattern.MatchString(plate) {
			continue
		}
		candidates = append(candidates, domain.PlateCandidate{
			Plate:      plate,
			Confidence: float64(*td.Confidence) / 100,
		})
	}
	return candidates, nil
}

// CleanPlateText keeps letters and digits and uppercases them.
func CleanPlateText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// BestCandidate returns the most confident candidate at or above threshold.
// Earlier candidates win ties.
func BestCandidate(candidates []domain.PlateCandidate, threshold float64) (domain.PlateCandidate, bool) {
	var best domain.PlateCandidate
	found := false
	for _, c := range candidates {
		if c.Plate == "" || c.Confidence < threshold {
			continue
		}
		if !found || c.Confidence > best.Confidence {
			best = c
			found = true
		}
	}
	return best, found
}

// LPRService turns images into a single plate read and logs every
// successful read.
type LPRService struct {
	detector   PlateDetector
	detections repository.DetectionRepository
	threshold  float64
	now        func() time.Time
}

// NewLPRService accepts a nil detector, in which case recognition reports
// ErrDetectionDisabled.
func NewLPRService(detector PlateDetector, detections repository.DetectionRepository, threshold float64, opts ...Option) *LPRService {
	o := buildOptions(opts)
	return &LPRService{detector: detector, detections: detections, threshold: threshold, now: o.now}
}

func (s *LPRService) Enabled() bool {
	return s.detector != nil
}

// Recognize returns the best plate read in image. ok is false when nothing
// cleared the confidence threshold; err is only set when the detector failed.
func (s *LPRService) Recognize(ctx context.Context, image []byte, source domain.DetectionSource, imageRef string) (_ domain.PlateCandidate, _ bool, err error) {
	ctx, span := tracer.Start(ctx, "LPRService.Recognize", trace.WithAttributes(
		attribute.String("detection.source", string(source)),
		attribute.Int("image.bytes", len(image)),
	))
	defer func() { endSpan(span, err) }()

	if s.detector == nil {
		return domain.PlateCandidate{}, false, ErrDetectionDisabled
	}

	candidates, err := s.detector.DetectPlates(ctx, image)
	if err != nil {
		logging.Errorf(ctx, "LPRService: detection failed: %v", err)
		return domain.PlateCandidate{}, false, err
	}

	best, ok := BestCandidate(candidates, s.threshold)
	if !ok {
		logging.Infof(ctx, "LPRService: no plate above %.2f among %d candidates", s.threshold, len(candidates))
		return domain.PlateCandidate{}, false, nil
	}
	span.SetAttributes(attribute.String("vehicle.plate", best.Plate), attribute.Float64("detection.confidence", best.Confidence))

	record := &domain.DetectionRecord{
		ID:           uuid.NewString(),
		Timestamp:    s.now(),
		LicensePlate: best.Plate,
		Confidence:   best.Confidence,
		Source:       source,
		ImageRef:     imageRef,
	}
	if s.detections != nil {
		if err := s.detections.Create(ctx, record); err != nil {
			logging.Errorf(ctx, "LPRService: could not save detection record: %v", err)
		}
	}
	logging.Infof(ctx, "LPRService: read %s (%.2f) from %s", best.Plate, best.Confidence, source)
	return best, true, nil
}

// RecentDetections lists the latest plate reads, newest first.
func (s *LPRService) RecentDetections(ctx context.Context, limit int) ([]domain.DetectionRecord, error) {
	if s.detections == nil {
		return []domain.DetectionRecord{}, nil
	}
	return s.detections.FindRecent(ctx, limit)
}
