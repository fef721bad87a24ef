package service

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository/memory"
)

type fakeTextAPI struct {
	detections []types.TextDetection
	err        error
	lastImage  []byte
}

func (f *fakeTextAPI) DetectText(_ context.Context, params *rekognition.DetectTextInput, _ ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	if params.Image != nil {
		f.lastImage = params.Image.Bytes
	}
	if f.err != nil {
		return nil, f.err
	}
	return &rekognition.DetectTextOutput{TextDetections: f.detections}, nil
}

func textLine(text string, confidence float32) types.TextDetection {
	return types.TextDetection{Type: types.TextTypesLine, DetectedText: aws.String(text), Confidence: aws.Float32(confidence)}
}

type stubDetector struct {
	candidates []domain.PlateCandidate
	err        error
}

func (s stubDetector) DetectPlates(context.Context, []byte) ([]domain.PlateCandidate, error) {
	return s.candidates, s.err
}

func TestCleanPlateText(t *testing.T) {
	assert.Equal(t, "KA01AB1234", CleanPlateText("ka-01 ab 1234"))
	assert.Equal(t, "MH12", CleanPlateText(" MH.12 "))
	assert.Empty(t, CleanPlateText("--- ..."))
}

func TestBestCandidate(t *testing.T) {
	candidates := []domain.PlateCandidate{
		{Plate: "LOW", Confidence: 0.4},
		{Plate: "FIRST", Confidence: 0.9},
		{Plate: "TIE", Confidence: 0.9},
		{Plate: "", Confidence: 0.99},
	}

	best, ok := BestCandidate(candidates, 0.5)
	require.True(t, ok)
	assert.Equal(t, "FIRST", best.Plate)

	_, ok = BestCandidate(candidates, 0.95)
	assert.False(t, ok)

	_, ok = BestCandidate(nil, 0)
	assert.False(t, ok)
}

func TestRekognitionDetector_DetectPlates(t *testing.T) {
	api := &fakeTextAPI{detections: []types.TextDetection{
		textLine("KA 01 AB 1234", 97.5),
		textLine("PARKING", 99),
		{Type: types.TextTypesWord, DetectedText: aws.String("KA01AB1234"), Confidence: aws.Float32(95)},
		{Type: types.TextTypesLine, DetectedText: nil, Confidence: aws.Float32(90)},
	}}
	detector, err := NewRekognitionDetector(api, `^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$`)
	require.NoError(t, err)

	candidates, err := detector.DetectPlates(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), api.lastImage)
	require.Len(t, candidates, 2)
	assert.Equal(t, "KA01AB1234", candidates[0].Plate)
	assert.InDelta(t, 0.975, candidates[0].Confidence, 1e-6)
	assert.InDelta(t, 0.95, candidates[1].Confidence, 1e-6)
}

func TestNewRekognitionDetector_BadPattern(t *testing.T) {
	_, err := NewRekognitionDetector(&fakeTextAPI{}, "([")
	assert.Error(t, err)
}

func TestLPRService_Recognize(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	detections := memory.NewDetectionRepository()
	svc := NewLPRService(stubDetector{candidates: []domain.PlateCandidate{
		{Plate: "DL8CAF5031", Confidence: 0.92},
		{Plate: "DL8CAF503", Confidence: 0.61},
	}}, detections, 0.7, WithClock(clock.Now))

	best, ok, err := svc.Recognize(ctx, []byte("img"), domain.SourceUpload, "upload-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "DL8CAF5031", best.Plate)

	records, err := svc.RecentDetections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DL8CAF5031", records[0].LicensePlate)
	assert.Equal(t, domain.SourceUpload, records[0].Source)
	assert.Equal(t, "upload-1", records[0].ImageRef)
	assert.True(t, records[0].Timestamp.Equal(clock.Now()))
}

func TestLPRService_RecognizeBelowThreshold(t *testing.T) {
	detections := memory.NewDetectionRepository()
	svc := NewLPRService(stubDetector{candidates: []domain.PlateCandidate{{Plate: "X1", Confidence: 0.3}}}, detections, 0.7)

	_, ok, err := svc.Recognize(context.Background(), []byte("img"), domain.SourceCamera, "")
	require.NoError(t, err)
	assert.False(t, ok)

	records, err := svc.RecentDetections(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLPRService_Errors(t *testing.T) {
	ctx := context.Background()

	disabled := NewLPRService(nil, nil, 0.5)
	assert.False(t, disabled.Enabled())
	_, _, err := disabled.Recognize(ctx, []byte("img"), domain.SourceUpload, "")
	assert.ErrorIs(t, err, ErrDetectionDisabled)

	failing := NewLPRService(stubDetector{err: errDiskFull}, nil, 0.5)
	_, ok, err := failing.Recognize(ctx, []byte("img"), domain.SourceUpload, "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, errDiskFull)
}
