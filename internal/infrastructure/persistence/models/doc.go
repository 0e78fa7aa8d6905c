// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain/FromDomain convert between the two
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: AggregateModel (version + timestamps)
// - herb_batch.go: herb_batches
// - ledger_operation.go: ledger_operations, the append-only audit log
// - trace_binding.go: trace_bindings
package models
