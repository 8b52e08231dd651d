// Package logger provee el logger Zap del tier: un singleton inicializado con
// Init y loggers por componente.
//
// Inicialización (una vez en cmd/tierd):
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "tierd"})
//	defer logger.Sync()
//
// En componentes, el logger se inyecta; el default es un logger con nombre:
//
//	log := logger.Named("replication")
//	log.Warn("passive unreachable", logger.PassiveID(id), logger.Err(err))
//
// Con contexto (operaciones de cliente):
//
//	logger.From(ctx).Debug("invoke", logger.ClientID(id), logger.OpCode(op))
package logger
