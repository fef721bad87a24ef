package handler

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/service"
)

type HistoryHandler struct {
	parkingService *service.ParkingService
}

func NewHistoryHandler(ps *service.ParkingService) *HistoryHandler {
	return &HistoryHandler{parkingService: ps}
}

// ParseHistoryFilter validates a history query. An empty period lists
// everything.
func ParseHistoryFilter(q domain.HistoryQueryDTO) (domain.HistoryFilter, error) {
	filter := domain.HistoryFilter{Period: domain.PeriodAll}
	if q.Type != "" {
		t, err := domain.ParseSpotType(q.Type)
		if err != nil {
			return filter, err
		}
		filter.Type = &t
	}
	if q.Status != "" {
		status, err := domain.ParseHistoryStatus(q.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if q.Period != "" {
		p, err := domain.ParsePeriod(q.Period)
		if err != nil {
			return filter, err
		}
		filter.Period = p
	}
	return filter, nil
}

func (h *HistoryHandler) bindFilter(c *gin.Context) (domain.HistoryFilter, bool) {
	var q domain.HistoryQueryDTO
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "details": err.Error()})
		return domain.HistoryFilter{}, false
	}
	filter, err := ParseHistoryFilter(q)
	if err != nil {
		respondError(c, err, "invalid history filter")
		return domain.HistoryFilter{}, false
	}
	return filter, true
}

// GET /api/v1/history?type=&status=&period=
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	entries := h.parkingService.History(filter)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// GET /api/v1/history/export
func (h *HistoryHandler) ExportHistory(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	entries := h.parkingService.History(filter)

	filename := fmt.Sprintf("parking_history_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	if err := WriteHistoryCSV(c.Writer, entries, h.parkingService.SessionFee); err != nil {
		c.Error(err)
	}
}

// HistoryCSVHeader lists the export columns in order.
var HistoryCSVHeader = []string{"spot_id", "spot_type", "license_plate", "entry_time", "exit_time", "duration_minutes", "fee", "status"}

// WriteHistoryCSV writes entries as CSV. fee prices closed entries.
func WriteHistoryCSV(w io.Writer, entries []domain.HistoryEntry,
	fee func(domain.HistoryEntry) (float64, bool)) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryCSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		exit, duration, amount := "", "", ""
		if d, ok := e.Duration(); ok {
			exit = e.ExitTime.Time.Format(time.RFC3339)
			duration = strconv.FormatFloat(d.Minutes(), 'f', 2, 64)
		}
		if f, ok := fee(e); ok {
			amount = strconv.FormatFloat(f, 'f', 2, 64)
		}
		record := []string{
			strconv.Itoa(e.SpotID),
			string(e.SpotType),
			e.Vehicle.LicensePlate,
			e.EntryTime.Format(time.RFC3339),
			exit,
			duration,
			amount,
			string(e.Status()),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DELETE /api/v1/history
func (h *HistoryHandler) ClearHistory(c *gin.Context) {
	if err := h.parkingService.ClearHistory(c.Request.Context()); err != nil {
		respondError(c, err, "could not clear history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "history cleared"})
}

// GET /api/v1/statistics?period=
func (h *HistoryHandler) GetStatistics(c *gin.Context) {
	period, err := domain.ParsePeriod(c.Query("period"))
	if err != nil {
		respondError(c, err, "invalid period")
		return
	}
	c.JSON(http.StatusOK, h.parkingService.Statistics(period))
}

// GET /api/v1/revenue?period=
func (h *HistoryHandler) GetRevenue(c *gin.Context) {
	period, err := domain.ParsePeriod(c.Query("period"))
	if err != nil {
		respondError(c, err, "invalid period")
		return
	}
	c.JSON(http.StatusOK, h.parkingService.Revenue(period))
}
