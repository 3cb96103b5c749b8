package domain

import (
	"strings"
	"time"
)

// Snapshot is an immutable view of the catalog taken at refresh time.
// Aggregation passes read one snapshot for their whole duration, so a
// concurrent refresh can never change matching results mid-run.
type Snapshot struct {
	Programs   []Program
	Promotions []Promotion

	byProgram map[string][]*Promotion
	TakenAt   time.Time
}

func NewSnapshot(programs []Program, promotions []Promotion, takenAt time.Time) *Snapshot {
	s := &Snapshot{
		Programs:   programs,
		Promotions: promotions,
		byProgram:  make(map[string][]*Promotion),
		TakenAt:    takenAt,
	}
	// Index preserves catalog listing order; MatchPromotion relies on it.
	for i := range promotions {
		p := &promotions[i]
		if !p.IsActive {
			continue
		}
		s.byProgram[p.ProgramID] = append(s.byProgram[p.ProgramID], p)
	}
	return s
}

// MatchPromotion returns the first active promotion, in catalog listing
// order, whose program matches, whose MCC allow-list contains mcc, and whose
// [start, end] range (inclusive on both ends) contains at. When several
// promotions overlap, listing order is the tie-break; value is not compared.
func (s *Snapshot) MatchPromotion(programID string, mcc int64, at time.Time) *Promotion {
	for _, p := range s.byProgram[programID] {
		if !containsCode(p.MccCodes, mcc) {
			continue
		}
		if p.StartDate != nil && at.Before(*p.StartDate) {
			continue
		}
		if p.EndDate != nil && at.After(*p.EndDate) {
			continue
		}
		return p
	}
	return nil
}

// ProgramByName resolves a program by case-insensitive name match.
func (s *Snapshot) ProgramByName(name string) *Program {
	for i := range s.Programs {
		if strings.EqualFold(s.Programs[i].Name, name) {
			return &s.Programs[i]
		}
	}
	return nil
}

func containsCode(codes []int64, mcc int64) bool {
	for _, c := range codes {
		if c == mcc {
			return true
		}
	}
	return false
}
