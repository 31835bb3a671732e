/*
Package ports defines the driven ports (interfaces) of waypoint.

These interfaces decouple the action plan pipeline from the storage backends
used by the HTTP and MCP adapters.

# Key Interfaces

  - PlanStore: persists generated plans (memory, file or Redis).
*/
package ports
