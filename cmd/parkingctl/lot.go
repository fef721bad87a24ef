package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smart_parking_lot/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lot occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		parking := current.core.Parking
		status := parking.Status()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", parking.LotName())
		fmt.Fprintf(out, "Occupied %d/%d (%.1f%%), %d available\n",
			status.OccupiedSpots, status.TotalSpots, status.OccupancyRate, status.AvailableSpots)
		for _, t := range domain.SpotTypes {
			byType := status.ByType[t]
			fmt.Fprintf(out, "  %-9s %d/%d\n", t, byType.Occupied, byType.Total)
		}
		return nil
	},
}

var spotsCmd = &cobra.Command{
	Use:   "spots",
	Short: "List every spot",
	RunE: func(cmd *cobra.Command, args []string) error {
		onlyOccupied, _ := cmd.Flags().GetBool("occupied")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROW\tPOS\tSIDE\tTYPE\tPLATE\tSINCE")
		for _, s := range current.core.Parking.Spots() {
			if onlyOccupied && !s.Occupied {
				continue
			}
			plate, since := "-", "-"
			if s.Occupied {
				plate = s.Vehicle.LicensePlate
				since = s.EntryTime.Time.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\t%s\n", s.ID, s.Row, s.Position, s.Side, s.Type, plate, since)
		}
		return w.Flush()
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Free every spot and close open sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		if err := current.core.Parking.ResetLot(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Lot reset.")
		return nil
	},
}

func init() {
	spotsCmd.Flags().Bool("occupied", false, "only occupied spots")
	resetCmd.Flags().Bool("yes", false, "confirm the reset")
	rootCmd.AddCommand(statusCmd, spotsCmd, resetCmd)
}
