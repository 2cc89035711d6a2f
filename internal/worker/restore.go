package worker

import (
	"fmt"

	"go.uber.org/zap"
)

// Snapshot is a persisted copy of the governance tables. Approved maps a
// proposal's "author/permlink" to that of its approved techspec.
type Snapshot struct {
	Proposals []Proposal
	Techspecs []Techspec
	Approved  map[string]string
}

func permlinkKey(author, permlink string) string {
	return author + "/" + permlink
}

// Restore loads a snapshot into empty tables without running evaluators.
// The restored objects are not reported as changed to block subscribers.
func (s *Store) Restore(snap Snapshot) error {
	err := s.db.WithWriteLock(func() error {
		if s.Proposals.Len() > 0 || s.Techspecs.Len() > 0 {
			return fmt.Errorf("worker tables are not empty")
		}
		techspecs := make(map[string]*Techspec, len(snap.Techspecs))
		for _, src := range snap.Techspecs {
			src := src
			ts, err := s.Techspecs.Create(func(ts *Techspec) { *ts = src })
			if err != nil {
				return fmt.Errorf("restore techspec %s/%s: %w", src.Author, src.Permlink, err)
			}
			techspecs[permlinkKey(ts.Author, ts.Permlink)] = ts
		}
		for _, src := range snap.Proposals {
			src := src
			var approved *Techspec
			if key, ok := snap.Approved[permlinkKey(src.Author, src.Permlink)]; ok {
				if approved, ok = techspecs[key]; !ok {
					return fmt.Errorf("restore proposal %s/%s: approved techspec %s is missing", src.Author, src.Permlink, key)
				}
			}
			_, err := s.Proposals.Create(func(p *Proposal) {
				*p = src
				p.ApprovedTechspec = 0
				if approved != nil {
					p.ApprovedTechspec = approved.ID
				}
			})
			if err != nil {
				return fmt.Errorf("restore proposal %s/%s: %w", src.Author, src.Permlink, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	// drop the change keys the restore produced
	if err := s.db.WithWriteLock(func() error {
		s.db.TakeChanges()
		return nil
	}); err != nil {
		return err
	}
	s.logger.Info("Restored worker proposals",
		zap.Int("proposals", len(snap.Proposals)),
		zap.Int("techspecs", len(snap.Techspecs)))
	return nil
}

// ApprovedTechspec returns the techspec approved for p, if any.
func (s *Store) ApprovedTechspec(p *Proposal) (*Techspec, bool) {
	if p.ApprovedTechspec == 0 {
		return nil, false
	}
	return s.Techspecs.Get(p.ApprovedTechspec)
}
