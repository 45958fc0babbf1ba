package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"pool size coerced to int", "export.pool_size", "10", 10, false},
		{"chunk size coerced to int", "export.chunk_size", "2000", 2000, false},
		{"batch size coerced to int", "eval.batch_size", "32", 32, false},
		{"val fraction coerced to float", "export.val_fraction", "0.2", 0.2, false},
		{"transition weight row kept as string", "export.transition_weights.ig", "1,2,1,1", "1,2,1,1", false},
		{"zero pool size rejected", "export.pool_size", "0", nil, true},
		{"non-numeric pool size rejected", "export.pool_size", "many", nil, true},
		{"val fraction of 1 rejected", "export.val_fraction", "1.0", nil, true},
		{"unknown key rejected", "export.poop_size", "10", nil, true},
		{"unknown transition class rejected", "export.transition_weights.promoter", "1,1,1,1", nil, true},
		{"short transition row rejected", "export.transition_weights.exon", "1,1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateConfigKey(t *testing.T) {
	assert.NoError(t, validateConfigKey("export.pool_size"))
	assert.NoError(t, validateConfigKey("export.transition_weights.intron"))

	err := validateConfigKey("export.window_size")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.pool_size")
}
