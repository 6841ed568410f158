package storage

import (
	"fmt"
)

// ProviderType represents the type of storage backend
type ProviderType string

const (
	// MemoryProviderType is an in-memory backend
	MemoryProviderType ProviderType = "memory"

	// RedisProviderType is a Redis backend (ephemeral store only)
	RedisProviderType ProviderType = "redis"

	// PostgresProviderType is a PostgreSQL backend (action store only)
	PostgresProviderType ProviderType = "postgres"

	// DynamoDBProviderType is a DynamoDB backend (action store only)
	DynamoDBProviderType ProviderType = "dynamodb"
)

// EphemeralConfig selects and configures an ephemeral store backend
type EphemeralConfig struct {
	// Type of backend to use
	Type ProviderType `json:"type"` // "memory", "redis"

	// Redis contains configuration for the Redis backend
	Redis *RedisConfig `json:"redis,omitempty"`
}

// DurableConfig selects and configures a durable action store backend
type DurableConfig struct {
	// Type of backend to use
	Type ProviderType `json:"type"` // "memory", "postgres", "dynamodb"

	// Postgres contains configuration for the PostgreSQL backend
	Postgres *PostgresConfig `json:"postgres,omitempty"`

	// DynamoDB contains configuration for the DynamoDB backend
	DynamoDB *DynamoDBConfig `json:"dynamodb,omitempty"`
}

// NewEphemeralStore creates an ephemeral store based on the configuration
func NewEphemeralStore(config EphemeralConfig) (EphemeralStore, error) {
	switch config.Type {
	case MemoryProviderType:
		return NewMemoryEphemeralStore(), nil

	case RedisProviderType:
		if config.Redis == nil {
			return nil, fmt.Errorf("redis configuration is required for redis provider")
		}
		return NewRedisEphemeralStore(*config.Redis)

	default:
		return nil, fmt.Errorf("unknown ephemeral store type: %s", config.Type)
	}
}

// NewActionStore creates a durable action store based on the configuration
func NewActionStore(config DurableConfig) (ActionStore, error) {
	switch config.Type {
	case MemoryProviderType:
		return NewMemoryActionStore(), nil

	case PostgresProviderType:
		if config.Postgres == nil {
			return nil, fmt.Errorf("postgres configuration is required for postgres provider")
		}
		return NewPostgresActionStore(*config.Postgres)

	case DynamoDBProviderType:
		if config.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb configuration is required for dynamodb provider")
		}
		return NewDynamoDBActionStore(*config.DynamoDB)

	default:
		return nil, fmt.Errorf("unknown action store type: %s", config.Type)
	}
}
