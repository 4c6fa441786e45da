package repository

import (
	"context"
	"fmt"
	"time"
)

// Config is shared by the DynamoDB repositories.
type Config struct {
	TableName string
	// IndexName is the GSI keyed on GSI1PK/GSI1SK. Empty means list queries
	// fall back to a filtered scan.
	IndexName string

	TimeoutMs int // per-call store timeout
	BatchSize int // BatchWriteItem page size, at most 25
	PageSize  int // Query/Scan page size
}

// Validate checks required fields and bounds.
func (c Config) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("TableName is required")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("TimeoutMs cannot be negative")
	}
	if c.BatchSize < 1 || c.BatchSize > 25 {
		return fmt.Errorf("BatchSize must be between 1 and 25")
	}
	return nil
}

// WithDefaults fills zero valued optional fields.
func (c Config) WithDefaults() Config {
	config := c
	if config.TimeoutMs == 0 {
		config.TimeoutMs = 3000
	}
	if config.BatchSize == 0 {
		config.BatchSize = 25
	}
	if config.PageSize == 0 {
		config.PageSize = 100
	}
	return config
}

// NewConfig creates a configuration with defaults applied.
func NewConfig(tableName, indexName string) Config {
	return Config{TableName: tableName, IndexName: indexName}.WithDefaults()
}

// WithTimeout bounds a single store call.
func (c Config) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.TimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.TimeoutMs)*time.Millisecond)
}
