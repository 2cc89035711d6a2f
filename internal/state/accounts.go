package state

import (
	"math"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

const (
	MaxAccountsLimit       = 1000
	MaxWitnessesLimit      = 1000
	MaxAccountHistoryLimit = 10000
)

// extendedAccount builds the API form of a stored account with its
// reputation filled in.
func (s *Service) extendedAccount(a *chain.Account) *objects.ExtendedAccount {
	ext := objects.NewExtendedAccount(a, s.db.Props.Get())
	if s.follow != nil {
		ext.Reputation = s.follow.GetAccountReputation(a.Name)
	}
	return ext
}

// GetAccounts returns the named accounts that exist, in request order.
func (s *Service) GetAccounts(names []string) ([]*objects.ExtendedAccount, error) {
	if len(names) > MaxAccountsLimit {
		return nil, protocol.NewParamError("names", "must not list more than %d accounts", MaxAccountsLimit)
	}
	out := make([]*objects.ExtendedAccount, 0, len(names))
	for _, name := range names {
		if a, ok := s.db.Accounts.Find(name); ok {
			out = append(out, s.extendedAccount(a))
		}
	}
	return out, nil
}

// GetAccountCount returns the number of stored accounts.
func (s *Service) GetAccountCount() int {
	return s.db.Accounts.Len()
}

// GetAccountHistory returns the entries of account numbered from-limit
// through from, oldest first. A negative from starts at the newest entry.
func (s *Service) GetAccountHistory(account string, from int64, limit uint32) ([]objects.HistoryItem, error) {
	if limit > MaxAccountHistoryLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", MaxAccountHistoryLimit)
	}
	if from < 0 || from > math.MaxUint32 {
		from = math.MaxUint32
	}
	if from < int64(limit) {
		return nil, protocol.NewParamError("from", "must be greater than limit")
	}

	var entries []*chain.HistoryEntry
	var lowest int64 = -1
	s.db.History.ByAccount.AscendFrom(&chain.HistoryEntry{Account: account, Sequence: uint32(from)}, func(e *chain.HistoryEntry) bool {
		if e.Account != account {
			return false
		}
		if lowest < 0 {
			lowest = max(int64(e.Sequence)-int64(limit), 0)
		}
		if int64(e.Sequence) < lowest {
			return false
		}
		entries = append(entries, e)
		return true
	})

	out := make([]objects.HistoryItem, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = objects.HistoryItem{
			Sequence:  e.Sequence,
			Operation: objects.NewAppliedOperation(e),
		}
	}
	return out, nil
}

// GetWitnessesByVote lists witnesses by votes, starting at from when it is
// set.
func (s *Service) GetWitnessesByVote(from string, limit uint32) ([]objects.Witness, error) {
	if limit > MaxWitnessesLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", MaxWitnessesLimit)
	}

	out := []objects.Witness{}
	collect := func(w *chain.Witness) bool {
		if len(out) >= int(limit) {
			return false
		}
		out = append(out, objects.NewWitness(w))
		return true
	}

	if from == "" {
		s.db.Witnesses.ByVote.Ascend(collect)
		return out, nil
	}
	start, ok := s.db.Witnesses.Find(from)
	if !ok {
		return out, nil
	}
	s.db.Witnesses.ByVote.AscendFrom(start, collect)
	return out, nil
}

// GetMinerQueue lists the owners of witnesses with pending proof of work.
func (s *Service) GetMinerQueue() []string {
	out := []string{}
	s.db.Witnesses.ByPow.AscendFrom(&chain.Witness{PowWorker: 1}, func(w *chain.Witness) bool {
		if w.PowWorker > 0 {
			out = append(out, w.Owner)
		}
		return true
	})
	return out
}
