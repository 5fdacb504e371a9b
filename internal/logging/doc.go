// Package logging provides a simple leveled logging interface for the
// animation converter.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including full ffmpeg argument lists
//   - INFO: General operational messages
//   - WARN: Warning conditions (dropped transparency, cleanup failures)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Request returns a logger that tags every
// line with a conversion request ID.
package logging
