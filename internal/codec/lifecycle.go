package codec

import (
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
)

// LifecycleCodec handles opcodes [1,10].
type LifecycleCodec struct{}

type lifecycleBody struct {
	MsgID        *int64                         `json:"msgId,omitempty"`
	ClientID     uuid.UUID                      `json:"clientId"`
	Name         string                         `json:"name,omitempty"`
	ServerConfig *tier.ServerSideConfiguration  `json:"serverConfig,omitempty"`
	StoreConfig  *tier.ServerStoreConfiguration `json:"storeConfig,omitempty"`
}

func (LifecycleCodec) Encode(m messages.Message) ([]byte, error) {
	body := lifecycleBody{MsgID: assignedID(m), ClientID: m.ClientID()}
	switch v := m.(type) {
	case *messages.ConfigureStoreManager:
		body.ServerConfig = &v.Config
	case *messages.ValidateStoreManager:
		body.ServerConfig = &v.Config
	case *messages.CreateServerStore:
		body.Name, body.StoreConfig = v.Name, &v.Config
	case *messages.ValidateServerStore:
		body.Name, body.StoreConfig = v.Name, &v.Config
	case *messages.ReleaseServerStore:
		body.Name = v.Name
	case *messages.DestroyServerStore:
		body.Name = v.Name
	default:
		return nil, wrongType("lifecycle", m)
	}
	return frame(m.OpCode(), body)
}

func (LifecycleCodec) Decode(payload []byte) (messages.Message, error) {
	if err := knownOp(payload,
		messages.OpConfigureStoreManager, messages.OpValidateStoreManager,
		messages.OpCreateServerStore, messages.OpValidateServerStore,
		messages.OpReleaseServerStore, messages.OpDestroyServerStore); err != nil {
		return nil, err
	}
	var body lifecycleBody
	if err := unframe(payload, &body); err != nil {
		return nil, err
	}
	var serverCfg tier.ServerSideConfiguration
	if body.ServerConfig != nil {
		serverCfg = *body.ServerConfig
	}
	var storeCfg tier.ServerStoreConfiguration
	if body.StoreConfig != nil {
		storeCfg = *body.StoreConfig
	}

	var m messages.Message
	switch op := messages.OpCode(payload[0]); op {
	case messages.OpConfigureStoreManager:
		m = messages.NewConfigureStoreManager(serverCfg, body.ClientID)
	case messages.OpValidateStoreManager:
		m = messages.NewValidateStoreManager(serverCfg, body.ClientID)
	case messages.OpCreateServerStore:
		m = messages.NewCreateServerStore(body.Name, storeCfg, body.ClientID)
	case messages.OpValidateServerStore:
		m = messages.NewValidateServerStore(body.Name, storeCfg, body.ClientID)
	case messages.OpReleaseServerStore:
		m = messages.NewReleaseServerStore(body.Name, body.ClientID)
	case messages.OpDestroyServerStore:
		m = messages.NewDestroyServerStore(body.Name, body.ClientID)
	default:
		return nil, &errs.UnrecognizedOpError{OpCode: payload[0]}
	}
	return restoreID(m, body.MsgID)
}
