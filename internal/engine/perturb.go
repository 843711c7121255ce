package engine

import (
	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// PerturbPools simulates exogenous order flow: each unresolved market's
// pools grow by a small pseudo-random amount per round. The flow is
// protocol-subsidized, it is not drawn from any agent's balance, and pools
// only ever grow, matching the bets-only-add invariant.
func PerturbPools(st *State, maxPerturbation domain.Amount) error {
	if maxPerturbation == 0 {
		return nil
	}
	for _, m := range st.UnresolvedMarkets() {
		yes := uint64(st.Rand().Int63n(int64(maxPerturbation) + 1))
		no := uint64(st.Rand().Int63n(int64(maxPerturbation) + 1))
		if _, err := economics.Add(uint64(m.YesPool), yes); err != nil {
			return err
		}
		if _, err := economics.Add(uint64(m.NoPool), no); err != nil {
			return err
		}
		m.AddToPool(domain.SideYes, domain.Amount(yes))
		m.AddToPool(domain.SideNo, domain.Amount(no))
	}
	return nil
}
