package logger

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS - CLIENTES Y MENSAJES
// =================================================================================

// ClientID identifica al cliente del tier manager.
func ClientID(v uuid.UUID) zap.Field {
	return zap.Stringer("client_id", v)
}

// MsgID es el message id asignado por el cliente (o por el active en replicación).
func MsgID(v int64) zap.Field {
	return zap.Int64("msg_id", v)
}

// OpCode registra el opcode por nombre.
func OpCode(v interface{ String() string }) zap.Field {
	return zap.Stringer("op", v)
}

// =================================================================================
// CAMPOS - STORES
// =================================================================================

// CacheID es el nombre del server store.
func CacheID(v string) zap.Field {
	return zap.String("cache_id", v)
}

// Key es la key de un chain.
func Key(v int64) zap.Field {
	return zap.Int64("key", v)
}

// Consistency del store.
func Consistency(v interface{ String() string }) zap.Field {
	return zap.Stringer("consistency", v)
}

// =================================================================================
// CAMPOS - REPLICACIÓN
// =================================================================================

func PassiveID(v string) zap.Field {
	return zap.String("passive_id", v)
}

// Seq es la secuencia del journal de replicación.
func Seq(v uint64) zap.Field {
	return zap.Uint64("seq", v)
}

// Epoch identifica la encarnación del active que asignó las secuencias.
func Epoch(v string) zap.Field {
	return zap.String("epoch", v)
}

// SyncMode es "journal" o "full".
func SyncMode(v string) zap.Field {
	return zap.String("sync_mode", v)
}

// =================================================================================
// CAMPOS - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Addr es una dirección de escucha.
func Addr(v string) zap.Field {
	return zap.String("addr", v)
}

// =================================================================================
// CAMPOS - HTTP (admin)
// =================================================================================

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}
