// Package model defines the task data model shared by the registry,
// orchestrator, store and HTTP layer.
package model
