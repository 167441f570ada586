package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a v4 id when the caller left it empty. Postgres also has a
// column default, but sqlite does not.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (v *Vendor) BeforeCreate(*gorm.DB) error           { ensureID(&v.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error          { ensureID(&p.ID); return nil }
func (v *Venue) BeforeCreate(*gorm.DB) error            { ensureID(&v.ID); return nil }
func (s *Sale) BeforeCreate(*gorm.DB) error             { ensureID(&s.ID); return nil }
func (l *SaleLineItem) BeforeCreate(*gorm.DB) error     { ensureID(&l.ID); return nil }
func (r *Recommendation) BeforeCreate(*gorm.DB) error   { ensureID(&r.ID); return nil }
func (f *Feedback) BeforeCreate(*gorm.DB) error         { ensureID(&f.ID); return nil }
func (c *SquareConnection) BeforeCreate(*gorm.DB) error { ensureID(&c.ID); return nil }

// All lists every persisted model, in dependency order, for sqlite AutoMigrate.
func All() []any {
	return []any{
		&Vendor{},
		&Product{},
		&Venue{},
		&Sale{},
		&SaleLineItem{},
		&Recommendation{},
		&Feedback{},
		&SquareConnection{},
	}
}
