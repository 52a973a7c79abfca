/*
Package pipfc is a tool for finding the fastest Python package index mirror.

pipfc probes a list of PyPI mirrors concurrently and reports the one with the
lowest connection latency. Features include:
  - HEAD, GET or plain TCP latency probes with a per-mirror timeout
  - Bounded worker pool or dispatch-loop scheduling, chosen at runtime
  - A global deadline for the whole run
  - Text, JSON and YAML reports
  - Safe rewrites of pip's configuration with timestamped backups

The main packages are:

	github.com/mirrorctl/pipfc/internal/mirror   - Probing, scheduling and mirror selection
	github.com/mirrorctl/pipfc/internal/pipconf  - pip configuration file handling
	github.com/mirrorctl/pipfc/cmd/pipfc         - Command-line interface
*/
package pipfc
