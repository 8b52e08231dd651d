package messages

import (
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
)

type lifecycle struct{ clientMessage }

func (lifecycle) Category() Category { return CategoryLifecycle }

// ConfigureStoreManager creates the tier manager (auto-create path) and attaches the client.
type ConfigureStoreManager struct {
	lifecycle
	Config tier.ServerSideConfiguration
}

func NewConfigureStoreManager(cfg tier.ServerSideConfiguration, clientID uuid.UUID) *ConfigureStoreManager {
	return &ConfigureStoreManager{lifecycle: lifecycle{clientMessage{clientID: clientID}}, Config: cfg}
}

func (*ConfigureStoreManager) OpCode() OpCode { return OpConfigureStoreManager }

// ValidateStoreManager checks the client's view of the tier manager and attaches the client.
type ValidateStoreManager struct {
	lifecycle
	Config tier.ServerSideConfiguration
}

func NewValidateStoreManager(cfg tier.ServerSideConfiguration, clientID uuid.UUID) *ValidateStoreManager {
	return &ValidateStoreManager{lifecycle: lifecycle{clientMessage{clientID: clientID}}, Config: cfg}
}

func (*ValidateStoreManager) OpCode() OpCode { return OpValidateStoreManager }

type CreateServerStore struct {
	lifecycle
	Name   string
	Config tier.ServerStoreConfiguration
}

func NewCreateServerStore(name string, cfg tier.ServerStoreConfiguration, clientID uuid.UUID) *CreateServerStore {
	return &CreateServerStore{lifecycle: lifecycle{clientMessage{clientID: clientID}}, Name: name, Config: cfg}
}

func (*CreateServerStore) OpCode() OpCode { return OpCreateServerStore }

type ValidateServerStore struct {
	lifecycle
	Name   string
	Config tier.ServerStoreConfiguration
}

func NewValidateServerStore(name string, cfg tier.ServerStoreConfiguration, clientID uuid.UUID) *ValidateServerStore {
	return &ValidateServerStore{lifecycle: lifecycle{clientMessage{clientID: clientID}}, Name: name, Config: cfg}
}

func (*ValidateServerStore) OpCode() OpCode { return OpValidateServerStore }

type ReleaseServerStore struct {
	lifecycle
	Name string
}

func NewReleaseServerStore(name string, clientID uuid.UUID) *ReleaseServerStore {
	return &ReleaseServerStore{lifecycle: lifecycle{clientMessage{clientID: clientID}}, Name: name}
}

func (*ReleaseServerStore) OpCode() OpCode { return OpReleaseServerStore }

type DestroyServerStore struct {
	lifecycle
	Name string
}

func NewDestroyServerStore(name string, clientID uuid.UUID) *DestroyServerStore {
	return &DestroyServerStore{lifecycle: lifecycle{clientMessage{clientID: clientID}}, Name: name}
}

func (*DestroyServerStore) OpCode() OpCode { return OpDestroyServerStore }
