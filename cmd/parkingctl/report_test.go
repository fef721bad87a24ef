package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/config"
)

func TestExportPath(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{HistoryExport: "exports/history.csv"}}
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"table by default", nil, ""},
		{"configured path", []string{"--csv"}, "exports/history.csv"},
		{"explicit path wins", []string{"--csv", "--export", "march.csv"}, "march.csv"},
		{"explicit path alone", []string{"--export", "march.csv"}, "march.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "history"}
			cmd.Flags().String("export", "", "")
			cmd.Flags().Bool("csv", false, "")
			require.NoError(t, cmd.Flags().Parse(tt.args))
			assert.Equal(t, tt.want, exportPath(cmd, cfg))
		})
	}
}
