/*
Package domain contains the core models of the action plan pipeline.

It is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Resource: a candidate support program sent to the backend.
  - ActionPlanRequest: the request body, resources in caller order.
  - ActionPlan: the structured record recovered from the backend reply.
  - Citation: a marker lifted out of plan prose, with its label and URL.
  - StoredPlan: an ActionPlan persisted under an ID.
*/
package domain
