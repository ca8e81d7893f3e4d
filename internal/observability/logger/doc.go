// Package logger expone un logger zap global con scoping por contexto.
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: cfg.Service.Name})
//	defer logger.Sync()
//
// En services/handlers:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Login"))
//	log.Info("login ok", logger.UserID(u.UserID))
package logger
