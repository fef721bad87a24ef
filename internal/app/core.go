// Package app assembles the lot core from configuration. The HTTP server and
// parkingctl share it so both see the same layout and history.
package app

import (
	"context"
	"time"

	"smart_parking_lot/internal/config"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/service"
)

type Core struct {
	Layout   *service.LayoutStore
	Tracker  *service.OccupancyTracker
	Assigner *service.SpotAssigner
	Parking  *service.ParkingService
}

func NewCore(ctx context.Context, cfg *config.Config, store *repository.Store, opts ...service.Option) (*Core, error) {
	layout, err := service.NewLayoutStore(ctx, store.Layout, cfg.Lot, opts...)
	if err != nil {
		return nil, err
	}
	tracker, err := service.NewOccupancyTracker(ctx, store.History, layout, opts...)
	if err != nil {
		return nil, err
	}
	assigner := service.NewSpotAssigner(layout)
	parking := service.NewParkingService(layout, assigner, tracker, Settings(cfg), opts...)
	return &Core{Layout: layout, Tracker: tracker, Assigner: assigner, Parking: parking}, nil
}

func Settings(cfg *config.Config) service.ParkingSettings {
	return service.ParkingSettings{
		Tariff:           service.TariffFromConfig(cfg.Pricing),
		OccupancyWarning: cfg.Notifications.OccupancyWarning,
		LongStay:         time.Duration(cfg.Notifications.LongStayHours * float64(time.Hour)),
	}
}
