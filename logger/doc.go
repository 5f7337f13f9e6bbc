// Package logger wraps zerolog with the conventions used across rai-memory:
// a process-wide logger configured once from Config, component-scoped child
// loggers, and field maps for structured context.
//
//	logger.Init(logger.Config{Level: "debug", Format: "json"})
//	log := logger.WithComponent("Neo4jConnector")
//	log.Info("connected", logger.Fields("uri", uri))
package logger
