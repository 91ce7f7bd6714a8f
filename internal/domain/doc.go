// Package domain contains the core business entities, value objects, and
// domain logic of the orchestrator: processing requests parsed from request
// descriptors, the data groups they partition into, remote job statuses and
// the local tracking records correlating remote jobs with request context.
// It is independent of any specific infrastructure or delivery mechanism.
package domain
