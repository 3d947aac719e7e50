// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and AggregateModel (id, timestamps, version)
// - finance.go: contracts, installments, receipts, status change logs, exchange rates
// - customer.go: the customer read model used by dashboard filters
package models
