// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Enumerates and fetches labelled items from one upstream
//   - ConnectorFactory: Creates connectors from configuration
//   - CheckpointStore: Durable run progress
//   - ResultStore: Spool of terminal fetch results for a run
//   - Renderer: Writes one output file per container
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
