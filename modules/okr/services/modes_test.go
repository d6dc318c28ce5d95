package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheetfile"
	"github.com/stratix-hq/stratix-sdk/modules/okr/services"
	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
)

func TestSelectMode(t *testing.T) {
	t.Parallel()

	opts := configuration.ImportOptions{
		SyncRowThreshold:       25,
		StreamingByteThreshold: 10 << 20,
	}

	tests := []struct {
		name        string
		rows        int
		size        int64
		contentType string
		want        services.Mode
	}{
		{"tiny csv", 10, 2048, sheetfile.ContentTypeCSV, services.ModeSync},
		{"threshold boundary stays sync", 25, 2048, sheetfile.ContentTypeCSV, services.ModeSync},
		{"one past threshold", 26, 2048, sheetfile.ContentTypeCSV, services.ModeBatched},
		{"mid-size csv", 5000, 5 << 20, sheetfile.ContentTypeCSV, services.ModeBatched},
		{"huge csv streams", -1, 11 << 20, sheetfile.ContentTypeCSV, services.ModeStreaming},
		{"huge xlsx never streams", -1, 11 << 20, sheetfile.ContentTypeXLSX, services.ModeBatched},
		{"tiny xlsx", 5, 4096, sheetfile.ContentTypeXLSX, services.ModeSync},
		{"unknown rows small file", -1, 2048, sheetfile.ContentTypeCSV, services.ModeBatched},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, services.SelectMode(tt.rows, tt.size, tt.contentType, opts))
		})
	}
}
