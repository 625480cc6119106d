// Package models contains the GORM persistence models for the load tables.
// Models stay separate from the domain types in internal/domain/load so the
// domain has no ORM tags; each model carries a FromDomain constructor and a
// ToDomain mapper used by the repositories.
package models
