package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smart_parking_lot/internal/api/handler"
	"smart_parking_lot/internal/config"
	"smart_parking_lot/internal/domain"
)

func periodFlag(cmd *cobra.Command) (domain.Period, error) {
	raw, _ := cmd.Flags().GetString("period")
	return domain.ParsePeriod(raw)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show visit statistics for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFlag(cmd)
		if err != nil {
			return err
		}
		stats := current.core.Parking.Statistics(period)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Period: %s\nVehicles: %d\n", stats.Period, stats.TotalVehicles)
		if stats.AvgDurationMinutes.Valid {
			fmt.Fprintf(out, "Average stay: %.1f min\n", stats.AvgDurationMinutes.Float64)
		} else {
			fmt.Fprintln(out, "Average stay: n/a")
		}
		for _, t := range domain.SpotTypes {
			ts := stats.ByType[t]
			fmt.Fprintf(out, "  %-9s %d vehicles, %.1f min average\n", t, ts.Count, ts.AvgDurationMinutes)
		}
		return nil
	},
}

var revenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Show revenue for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFlag(cmd)
		if err != nil {
			return err
		}
		report := current.core.Parking.Revenue(period)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Period: %s\nRevenue: %s %.2f from %d exits\n",
			report.Period, report.Currency, report.TotalRevenue, report.ExitedCount)
		for _, t := range domain.SpotTypes {
			r := report.ByType[t]
			fmt.Fprintf(out, "  %-9s %s %.2f, %d exits, average fee %.2f\n", t, report.Currency, r.Revenue, r.ExitedCount, r.AvgFee)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List parking sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var q domain.HistoryQueryDTO
		q.Type, _ = cmd.Flags().GetString("type")
		q.Status, _ = cmd.Flags().GetString("status")
		q.Period, _ = cmd.Flags().GetString("period")
		filter, err := handler.ParseHistoryFilter(q)
		if err != nil {
			return err
		}
		parking := current.core.Parking
		entries := parking.History(filter)

		if path := exportPath(cmd, current.cfg); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := handler.WriteHistoryCSV(f, entries, parking.SessionFee); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", len(entries), path)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SPOT\tTYPE\tPLATE\tENTRY\tEXIT\tSTATUS")
		for _, e := range entries {
			exit := "-"
			if e.ExitTime.Valid {
				exit = e.ExitTime.Time.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.SpotID, e.SpotType, e.Vehicle.LicensePlate, e.EntryTime.Local().Format(time.DateTime), exit, e.Status())
		}
		return w.Flush()
	},
}

// exportPath is the --export value, or storage.history_export when only --csv
// is given. Empty means print a table.
func exportPath(cmd *cobra.Command, cfg *config.Config) string {
	if path, _ := cmd.Flags().GetString("export"); path != "" {
		return path
	}
	if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
		return cfg.Storage.HistoryExport
	}
	return ""
}

var clearHistoryCmd = &cobra.Command{
	Use:   "clear-history",
	Short: "Delete every parking session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear history without --yes")
		}
		if err := current.core.Parking.ClearHistory(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	},
}

func init() {
	statsCmd.Flags().String("period", "day", "day, week, month or all")
	revenueCmd.Flags().String("period", "day", "day, week, month or all")
	historyCmd.Flags().String("period", "all", "day, week, month or all")
	historyCmd.Flags().String("type", "", "standard, handicap or premium")
	historyCmd.Flags().String("status", "", "parked or exited")
	historyCmd.Flags().String("export", "", "write CSV to this file instead of printing")
	historyCmd.Flags().Bool("csv", false, "write CSV to storage.history_export")
	clearHistoryCmd.Flags().Bool("yes", false, "confirm the deletion")
	rootCmd.AddCommand(statsCmd, revenueCmd, historyCmd, clearHistoryCmd)
}
