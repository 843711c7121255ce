package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/protocolsim/idlarena/internal/domain"
)

const systemTemplate = `You are %s, a competitor in a token-staking and prediction-market game.
Your persona: %s

Rules:
- STAKE tokens to earn a wager bonus (1 bps per million staked, capped at 50%%).
- LOCK_VE your stake for 1 week to 4 years (duration_seconds) to gain voting power; locked stake cannot be unstaked.
- UNLOCK_VE releases an expired lock.
- CREATE_MARKET opens a yes/no market (resolution_offset seconds out, at least 3600).
- PLACE_BET wagers liquid tokens on a market side; your effective stake in the pool includes your staking bonus.
- CLAIM_WINNINGS collects a resolved winning bet by bet_id.
- WAIT or ANALYZE does nothing this round.

Respond with exactly one JSON object and nothing else, for example:
{"action":"PLACE_BET","market_id":"...","amount":"250","side":"yes","rationale":"..."}
Amounts are decimal strings of base units. Invalid responses forfeit your turn.`

// BuildPrompt assembles the per-agent request: persona and rules in the
// system half, the shared round snapshot and the agent's own book in the
// user half.
func BuildPrompt(agent *domain.AgentState, sc domain.SimulationContext) (Prompt, error) {
	ctxJSON, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("decision: marshal context: %w", err)
	}
	selfJSON, err := json.MarshalIndent(agent, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("decision: marshal agent: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Round %d of %d.\n\n", sc.Round, sc.TotalRounds)
	user.WriteString("World state:\n")
	user.Write(ctxJSON)
	user.WriteString("\n\nYour state:\n")
	user.Write(selfJSON)
	user.WriteString("\n\nChoose your action for this round.")

	return Prompt{
		System: fmt.Sprintf(systemTemplate, agent.Name, agent.Persona),
		User:   user.String(),
	}, nil
}
