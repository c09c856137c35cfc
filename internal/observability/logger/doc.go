// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Uso
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
// En controllers/services:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Initiate"))
//	log.Info("pending identity created", logger.IdentityID(id))
//
// Los middlewares HTTP inyectan un logger con request_id, method y path; From(ctx)
// cae al singleton si no hay logger en el contexto.
package logger
