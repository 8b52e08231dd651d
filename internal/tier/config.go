// Package tier contiene la configuración de un tier manager y de sus stores,
// junto con los chequeos de compatibilidad que ejecuta la validación de lifecycle.
package tier

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dropDatabas3/clustertier/internal/errs"
)

// Pool es un recurso compartido declarado en el tier manager.
type Pool struct {
	Size           uint64 `json:"size" yaml:"size"`
	ServerResource string `json:"serverResource,omitempty" yaml:"server_resource"`
}

// ServerSideConfiguration es la configuración del tier manager (la que valida validate()).
type ServerSideConfiguration struct {
	DefaultServerResource string          `json:"defaultServerResource,omitempty" yaml:"default_server_resource"`
	ResourcePools         map[string]Pool `json:"resourcePools,omitempty" yaml:"resource_pools"`
}

// Compatible devuelve nil si other describe el mismo tier manager.
func (c ServerSideConfiguration) Compatible(other ServerSideConfiguration) error {
	if c.DefaultServerResource != other.DefaultServerResource {
		return &errs.InvalidServerSideConfigurationError{
			Field:    "defaultServerResource",
			Expected: c.DefaultServerResource,
			Actual:   other.DefaultServerResource,
		}
	}
	if len(c.ResourcePools) != len(other.ResourcePools) {
		return &errs.InvalidServerSideConfigurationError{
			Field:    "resourcePools",
			Expected: poolNames(c.ResourcePools),
			Actual:   poolNames(other.ResourcePools),
		}
	}
	for name, p := range c.ResourcePools {
		q, ok := other.ResourcePools[name]
		if !ok || p != q {
			return &errs.InvalidServerSideConfigurationError{
				Field:    "resourcePools." + name,
				Expected: fmt.Sprintf("%+v", p),
				Actual:   fmt.Sprintf("%+v", q),
			}
		}
	}
	return nil
}

func poolNames(m map[string]Pool) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprint(names)
}

// PoolKind distingue asignación dedicada vs compartida.
type PoolKind string

const (
	PoolDedicated PoolKind = "dedicated"
	PoolShared    PoolKind = "shared"
)

// PoolAllocation describe de dónde obtiene memoria un store.
type PoolAllocation struct {
	Kind         PoolKind `json:"kind" yaml:"kind"`
	ResourceName string   `json:"resourceName" yaml:"resource_name"`
	Size         uint64   `json:"size,omitempty" yaml:"size"`
}

// ServerStoreConfiguration es la configuración inmutable de un store (cache) del tier.
type ServerStoreConfiguration struct {
	PoolAllocation      PoolAllocation `json:"poolAllocation" yaml:"pool_allocation"`
	StoredKeyType       string         `json:"storedKeyType" yaml:"stored_key_type"`
	StoredValueType     string         `json:"storedValueType" yaml:"stored_value_type"`
	KeySerializerType   string         `json:"keySerializerType,omitempty" yaml:"key_serializer_type"`
	ValueSerializerType string         `json:"valueSerializerType,omitempty" yaml:"value_serializer_type"`
	Consistency         Consistency    `json:"consistency" yaml:"consistency"`
}

// Compatible compara campo a campo y reporta la primera diferencia.
func (c ServerStoreConfiguration) Compatible(store string, other ServerStoreConfiguration) error {
	checks := []struct {
		field         string
		expect, found string
	}{
		{"poolAllocation.kind", string(c.PoolAllocation.Kind), string(other.PoolAllocation.Kind)},
		{"poolAllocation.resourceName", c.PoolAllocation.ResourceName, other.PoolAllocation.ResourceName},
		{"poolAllocation.size", strconv.FormatUint(c.PoolAllocation.Size, 10), strconv.FormatUint(other.PoolAllocation.Size, 10)},
		{"storedKeyType", c.StoredKeyType, other.StoredKeyType},
		{"storedValueType", c.StoredValueType, other.StoredValueType},
		{"keySerializerType", c.KeySerializerType, other.KeySerializerType},
		{"valueSerializerType", c.ValueSerializerType, other.ValueSerializerType},
		{"consistency", c.Consistency.String(), other.Consistency.String()},
	}
	for _, ch := range checks {
		if ch.expect != ch.found {
			return &errs.InvalidServerStoreConfigurationError{Store: store, Field: ch.field, Expected: ch.expect, Actual: ch.found}
		}
	}
	return nil
}

// Validate rechaza configuraciones sin consistencia o sin tipos.
func (c ServerStoreConfiguration) Validate() error {
	if c.Consistency != Strong && c.Consistency != Eventual {
		return fmt.Errorf("store configuration: consistency must be STRONG or EVENTUAL")
	}
	if c.StoredKeyType == "" || c.StoredValueType == "" {
		return fmt.Errorf("store configuration: stored key and value types are required")
	}
	switch c.PoolAllocation.Kind {
	case PoolDedicated, PoolShared:
	default:
		return fmt.Errorf("store configuration: unknown pool allocation %q", c.PoolAllocation.Kind)
	}
	return nil
}
