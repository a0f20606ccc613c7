package cache

import (
	"fmt"
	"strings"
)

type EntityType string

const (
	EntityRoutingConfig EntityType = "routing_config"
	EntityPSP           EntityType = "psp"
)

type KeyType string

const (
	KeyID    KeyType = "id"
	KeyStore KeyType = "store"
)

// GenerateKey creates a standardized cache key
func GenerateKey(entity EntityType, keyType KeyType, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entity, keyType, value)
}

// RoutingConfigKey is the key of a store's cached routing config.
func RoutingConfigKey(storeID uint) string {
	return GenerateKey(EntityRoutingConfig, KeyStore, storeID)
}

// RoutingConfigPattern matches every cached routing config.
func RoutingConfigPattern() string {
	return fmt.Sprintf("%s:%s:*", EntityRoutingConfig, KeyStore)
}

// ParseKey extracts components from a cache key
func ParseKey(key string) map[string]string {
	parts := strings.Split(key, ":")
	if len(parts) < 3 {
		return nil
	}

	return map[string]string{
		"entity": parts[0],
		parts[1]: strings.Join(parts[2:], ":"),
	}
}
