// Package logging builds the slog loggers used across VoxBox. It provides
// a key=value console handler for interactive use, a JSON handler for
// daemon logs, and shared attribute helpers so components log with a
// consistent vocabulary.
package logging
