// Package models contains GORM-specific persistence models that map to database tables.
// Domain entities stay free of ORM tags; each model converts to and from its
// domain counterpart with ToDomain / FromDomain.
//
// Timestamps are normalized to UTC on the way in so that range predicates
// compare consistently on every supported dialect.
//
// Structure:
// - base.go: BaseModel and AggregateModel
// - sale.go: Sale with its companion, hosting and ticket lines, plus Invoice
// - commission.go: seller and tour operator commission rate tables
// - cashback.go: CashbackCampaign and CashbackGrant
package models
