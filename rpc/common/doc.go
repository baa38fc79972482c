// Package common provides the configuration and logging shared by the server
// and the command-line interface.
//
// Key Components:
//
//   - ServerConfig: All options of the bridge server: listen endpoint and socket
//     options, accept backoff, backing store connection, per-operation consistency
//     levels, admin endpoint and log level. String renders the sectioned dump
//     that is logged at startup, Validate rejects unusable combinations.
//
//   - Logger: Custom implementation of dragonboat's logger.ILogger that prints
//     "LEVEL | package | message" lines. InitLoggers installs it as the factory
//     and applies the configured level to every package logger.
package common
