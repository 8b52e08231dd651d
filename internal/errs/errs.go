// Package errs define la taxonomía de errores del tier: validación de lifecycle,
// fallas de decode y mutaciones no soportadas. Todos se inspeccionan con errors.Is/As.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload: payload vacío o cuerpo que el sub-codec no puede interpretar.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnknownCategory: el mensaje no pertenece a ninguna de las cuatro categorías.
	ErrUnknownCategory = errors.New("unknown message category")

	// ErrIDAlreadySet: el message id ya fue asignado antes de la transmisión.
	ErrIDAlreadySet = errors.New("message id already set")

	// ErrUnsupported: operación no soportada por la variante (p.ej. SetID en replicación).
	ErrUnsupported = fmt.Errorf("operation not supported on replication message: %w", errors.ErrUnsupported)

	// ErrPassiveUnreachable: un passive no confirmó dentro del timeout.
	ErrPassiveUnreachable = errors.New("passive unreachable")

	// ErrNotAttached: el cliente invocó una operación sin haberse adjuntado al tier manager.
	ErrNotAttached = errors.New("client not attached to tier manager")
)

// LifecycleError reporta un conflicto de lifecycle (cliente ya trackeado, store duplicado, etc).
type LifecycleError struct {
	Msg string
}

func (e *LifecycleError) Error() string { return e.Msg }

// Lifecycle construye un *LifecycleError con formato printf.
func Lifecycle(format string, args ...any) *LifecycleError {
	return &LifecycleError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidStoreError: el store nombrado no existe en este entity.
type InvalidStoreError struct {
	Name string
}

func (e *InvalidStoreError) Error() string {
	return fmt.Sprintf("clustered tier '%s' does not exist", e.Name)
}

// InvalidServerSideConfigurationError describe el primer campo que no coincide
// entre la configuración del cliente y la del tier manager.
type InvalidServerSideConfigurationError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *InvalidServerSideConfigurationError) Error() string {
	return fmt.Sprintf("invalid server side configuration: %s mismatch (expected %q, got %q)", e.Field, e.Expected, e.Actual)
}

// InvalidServerStoreConfigurationError describe el primer campo que no coincide
// entre dos ServerStoreConfiguration.
type InvalidServerStoreConfigurationError struct {
	Store    string
	Field    string
	Expected string
	Actual   string
}

func (e *InvalidServerStoreConfigurationError) Error() string {
	return fmt.Sprintf("clustered tier '%s': existing %s %q does not match requested %q", e.Store, e.Field, e.Expected, e.Actual)
}

// UnrecognizedOpError: opcode fuera de todos los rangos definidos.
type UnrecognizedOpError struct {
	OpCode byte
}

func (e *UnrecognizedOpError) Error() string {
	return fmt.Sprintf("unrecognized operation: opcode %d", e.OpCode)
}
