package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

func TestExportOptionsFilter(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	opts := exportOptions{status: " Pending ", workType: "ELECTRICAL", block: " A ", from: "2024-04-01", to: "2024-04-30"}

	filter, err := opts.filter(loc)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, filter.Status)
	assert.Equal(t, models.WorkTypeElectrical, filter.WorkType)
	assert.Equal(t, "A", filter.Block)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.True(t, filter.From.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, loc)))
	assert.True(t, filter.To.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, loc)))
}

func TestExportOptionsFilterRejectsBadDates(t *testing.T) {
	_, err := exportOptions{from: "01/04/2024"}.filter(time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from: expected")

	_, err = exportOptions{to: "yesterday"}.filter(time.UTC)
	require.Error(t, err)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["sweep-orphans"])
	assert.True(t, names["export"])

	migrate, _, err := root.Find([]string{"migrate", "status"})
	require.NoError(t, err)
	assert.Equal(t, "status", migrate.Name())
}
