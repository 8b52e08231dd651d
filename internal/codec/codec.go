// Package codec traduce entre bytes de wire y mensajes en memoria.
//
// Formato: byte 0 = opcode; el resto pertenece al sub-codec de la categoría.
// El dispatcher solo hace routing por rango de opcode; toda la lógica de
// decodificación vive en los sub-codecs, que son sustituibles (mockeables)
// uno por uno.
package codec

import (
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
)

// SubCodec codifica y decodifica los mensajes de una categoría.
type SubCodec interface {
	Encode(m messages.Message) ([]byte, error)
	Decode(payload []byte) (messages.Message, error)
}

// Codec es el dispatcher por categoría.
type Codec struct {
	lifecycle   SubCodec
	serverStore SubCodec
	stateRepo   SubCodec
	replication SubCodec
}

// New arma un dispatcher con los sub-codecs dados.
func New(lifecycle, serverStore, stateRepo, replication SubCodec) *Codec {
	return &Codec{
		lifecycle:   lifecycle,
		serverStore: serverStore,
		stateRepo:   stateRepo,
		replication: replication,
	}
}

// Default devuelve el dispatcher con los sub-codecs JSON del paquete.
func Default() *Codec {
	return New(LifecycleCodec{}, ServerStoreCodec{}, StateRepoCodec{}, ReplicationCodec{})
}

func (c *Codec) sub(cat messages.Category) (SubCodec, bool) {
	switch cat {
	case messages.CategoryLifecycle:
		return c.lifecycle, true
	case messages.CategoryServerStore:
		return c.serverStore, true
	case messages.CategoryStateRepo:
		return c.stateRepo, true
	case messages.CategoryReplication:
		return c.replication, true
	default:
		return nil, false
	}
}

// Encode delega en el sub-codec de la categoría del mensaje.
func (c *Codec) Encode(m messages.Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode nil message: %w", errs.ErrUnknownCategory)
	}
	sc, ok := c.sub(m.Category())
	if !ok {
		return nil, fmt.Errorf("encode %T (category %d): %w", m, uint8(m.Category()), errs.ErrUnknownCategory)
	}
	return sc.Encode(m)
}

// Decode lee el opcode, resuelve la categoría por rango y delega.
// Un opcode fuera de [1,40] nunca cae en un sub-codec por defecto.
func (c *Codec) Decode(payload []byte) (messages.Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode: empty payload: %w", errs.ErrMalformedPayload)
	}
	op := payload[0]
	cat, ok := messages.CategoryOf(messages.OpCode(op))
	if !ok {
		return nil, &errs.UnrecognizedOpError{OpCode: op}
	}
	sc, _ := c.sub(cat)
	return sc.Decode(payload)
}
