package codec

import (
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
)

// frame prepends the opcode to the JSON body.
func frame(op messages.OpCode, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	out := make([]byte, 1+len(b))
	out[0] = byte(op)
	copy(out[1:], b)
	return out, nil
}

func unframe(payload []byte, v any) error {
	if len(payload) < 2 {
		return fmt.Errorf("decode %s: missing body: %w", messages.OpCode(payload[0]), errs.ErrMalformedPayload)
	}
	if err := json.Unmarshal(payload[1:], v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", messages.OpCode(payload[0]), err, errs.ErrMalformedPayload)
	}
	return nil
}

// knownOp rejects an opcode no variant owns before the body is parsed.
func knownOp(payload []byte, ops ...messages.OpCode) error {
	if len(payload) == 0 {
		return fmt.Errorf("decode: empty payload: %w", errs.ErrMalformedPayload)
	}
	for _, op := range ops {
		if messages.OpCode(payload[0]) == op {
			return nil
		}
	}
	return &errs.UnrecognizedOpError{OpCode: payload[0]}
}

type idAssigner interface {
	IDAssigned() bool
}

// assignedID returns nil when the client never set an id on m.
func assignedID(m messages.Message) *int64 {
	if a, ok := m.(idAssigner); ok && a.IDAssigned() {
		id := m.ID()
		return &id
	}
	return nil
}

func restoreID(m messages.Message, id *int64) (messages.Message, error) {
	if id == nil {
		return m, nil
	}
	if err := m.SetID(*id); err != nil {
		return nil, err
	}
	return m, nil
}

func wrongType(sub string, m messages.Message) error {
	return fmt.Errorf("%s codec cannot encode %T: %w", sub, m, errs.ErrUnknownCategory)
}
