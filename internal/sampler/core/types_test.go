package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c Config) Config
		wantErr bool
	}{
		{
			name:    "default is valid",
			mutate:  func(c Config) Config { return c },
			wantErr: false,
		},
		{
			name:    "zero tick interval",
			mutate:  func(c Config) Config { c.TickInterval = 0; return c },
			wantErr: true,
		},
		{
			name:    "deadline longer than tick",
			mutate:  func(c Config) Config { c.IterationDeadline = c.TickInterval + time.Second; return c },
			wantErr: true,
		},
		{
			name:    "zero net table size",
			mutate:  func(c Config) Config { c.NetCounterTableSize = 0; return c },
			wantErr: true,
		},
		{
			name:    "zero max records",
			mutate:  func(c Config) Config { c.MaxRecordsPerPull = 0; return c },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.mutate(DefaultConfig())
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				var ve ValidationError
				assert.ErrorAs(t, err, &ve)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
