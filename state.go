package rtledger

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/model"
)

// State is a read snapshot of the back office, loaded in full from the store.
type State struct {
	Partners          []model.Partner          `json:"partners"`
	Payouts           []model.PayoutBatch      `json:"payouts"`
	Redemptions       []model.PayoutBatch      `json:"redemptions"`
	Files             []model.ImportedFile     `json:"files"`
	ManualCommissions []model.ManualCommission `json:"manual_commissions"`
	Features          model.FeatureSet         `json:"features"`
	LoadedAt          time.Time                `json:"loaded_at"`
}

// stateStore holds the last snapshot. Mutations mark it stale and the next read reloads
// it whole; snapshots are never patched in place.
type stateStore struct {
	current atomic.Pointer[State]
	stale   atomic.Bool
	load    func(ctx context.Context) (*State, error)
}

func newStateStore(load func(ctx context.Context) (*State, error)) *stateStore {
	s := &stateStore{load: load}
	s.stale.Store(true)
	return s
}

func (s *stateStore) snapshot(ctx context.Context) (*State, error) {
	if st := s.current.Load(); st != nil && !s.stale.Load() {
		return st, nil
	}
	return s.reload(ctx)
}

func (s *stateStore) reload(ctx context.Context) (*State, error) {
	// cleared before loading so a mutation during the load marks it stale again
	s.stale.Store(false)
	st, err := s.load(ctx)
	if err != nil {
		s.stale.Store(true)
		return nil, err
	}
	s.current.Store(st)
	return st, nil
}

func (s *stateStore) invalidate() {
	s.stale.Store(true)
}

// Snapshot returns the cached state, reloading it when a mutation happened since the last load.
func (l *RTLedger) Snapshot(ctx context.Context) (*State, error) {
	return l.state.snapshot(ctx)
}

// Reload forces a full reload of the state.
func (l *RTLedger) Reload(ctx context.Context) (*State, error) {
	return l.state.reload(ctx)
}

func (l *RTLedger) invalidate() {
	l.state.invalidate()
}

func (l *RTLedger) loadState(ctx context.Context) (*State, error) {
	partners, err := l.datasource.GetAllPartners(ctx, l.features, "name")
	if err != nil {
		return nil, err
	}
	payouts, err := l.datasource.GetPayouts(ctx, model.PayoutKindPayout)
	if err != nil {
		return nil, err
	}
	redemptions, err := l.datasource.GetPayouts(ctx, model.PayoutKindRedemption)
	if err != nil {
		return nil, err
	}
	files, err := l.datasource.GetImportedFiles(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := l.datasource.GetManualCommissions(ctx)
	if err != nil {
		return nil, err
	}

	return &State{
		Partners:          partners,
		Payouts:           groupPayouts(payouts, model.PayoutKindPayout),
		Redemptions:       groupPayouts(redemptions, model.PayoutKindRedemption),
		Files:             files,
		ManualCommissions: requests,
		Features:          l.features,
		LoadedAt:          time.Now(),
	}, nil
}

// groupPayouts groups payouts by generation date, keeping the order of first appearance.
func groupPayouts(payouts []model.Payout, kind model.PayoutKind) []model.PayoutBatch {
	batches := []model.PayoutBatch{}
	index := map[time.Time]int{}
	for _, p := range payouts {
		day := model.DateOnly(p.GenerationDate)
		i, ok := index[day]
		if !ok {
			batches = append(batches, model.PayoutBatch{GenerationDate: day, Kind: kind, Total: decimal.Zero, AllPaid: true})
			i = len(batches) - 1
			index[day] = i
		}
		batches[i].Payouts = append(batches[i].Payouts, p)
		batches[i].Total = batches[i].Total.Add(p.Amount)
		batches[i].AllPaid = batches[i].AllPaid && p.Paid
	}
	return batches
}
