/*

This file implements every read endpoint: votes, holders, bindings,
miners, pools, positions, the final weight vector, and per-voter
cooldown/history views.

*/

package web

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/liquidminer/incentived/internal/apierr"
	"github.com/liquidminer/incentived/internal/cooldown"
	"github.com/liquidminer/incentived/internal/emissions"
	"github.com/liquidminer/incentived/internal/mathutil"
	"github.com/liquidminer/incentived/internal/store"
	"github.com/liquidminer/incentived/internal/types"
)

type voteView struct {
	types.Vote
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) handleUserVotes(w http.ResponseWriter, r *http.Request) {
	voter := mux.Vars(r)["voter"]

	vote, err := store.GetVote(voter)
	if err == sql.ErrNoRows {
		writeAPIError(w, apierr.New(apierr.InvalidInput, "voter has no current vote"))
		return
	}
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}
	writeSuccess(w, vote)
}

func (s *Server) handleAllVotes(w http.ResponseWriter, r *http.Request) {
	views, err := s.allVotes.get(func() ([]voteView, error) {
		votes, err := store.AllVotes()
		if err != nil {
			return nil, err
		}
		multipliers := emissions.VoterMultipliers(s.Holders.All())

		out := make([]voteView, len(votes))
		for i, v := range votes {
			out[i] = voteView{Vote: v, Multiplier: multipliers[v.Voter]}
		}
		return out, nil
	})
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}
	writeSuccess(w, views)
}

func (s *Server) handleAllHolders(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, s.Holders.All())
}

func (s *Server) handleAllAddresses(w http.ResponseWriter, r *http.Request) {
	bindings, err := store.AllBindings()
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}

	out := make([]types.Binding, 0, len(bindings))
	for _, b := range bindings {
		if s.Roster.Contains(b.Voter) {
			out = append(out, b)
		}
	}
	writeSuccess(w, out)
}

type minerView struct {
	Miner    string  `json:"miner"`
	External *string `json:"external,omitempty"`
}

func (s *Server) handleAllMiners(w http.ResponseWriter, r *http.Request) {
	bindings, err := store.AllBindings()
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}
	byVoter := make(map[string]string, len(bindings))
	for _, b := range bindings {
		byVoter[b.Voter] = b.External
	}

	miners := s.Roster.All()
	out := make([]minerView, len(miners))
	for i, m := range miners {
		view := minerView{Miner: m}
		if ext, ok := byVoter[m]; ok {
			view.External = &ext
		}
		out[i] = view
	}
	writeSuccess(w, out)
}

type poolView struct {
	types.Pool
	Voters []poolVoterView `json:"voters"`
}

type poolVoterView struct {
	Voter  string `json:"voter"`
	Weight int    `json:"weight"`
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	votes, err := store.AllVotes()
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}
	metadata, err := store.AllPoolMetadata()
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}

	byAddress := make(map[string]*poolView, len(metadata))
	order := make([]string, 0, len(metadata))
	for _, p := range metadata {
		byAddress[p.Address] = &poolView{Pool: p}
		order = append(order, p.Address)
	}

	for _, v := range votes {
		for _, pw := range v.Pools {
			pv, ok := byAddress[pw.Pool]
			if !ok {
				continue
			}
			pv.Voters = append(pv.Voters, poolVoterView{Voter: v.Voter, Weight: pw.Weight})
		}
	}

	out := make([]poolView, 0, len(order))
	for _, addr := range order {
		out = append(out, *byAddress[addr])
	}
	writeSuccess(w, out)
}

type positionView struct {
	types.PositionScore
	Owner     string  `json:"owner"`
	Miner     string  `json:"miner,omitempty"`
	Amount0   float64 `json:"amount0"`
	Amount1   float64 `json:"amount1"`
	Symbol0   string  `json:"symbol0"`
	Symbol1   string  `json:"symbol1"`
	USD0      float64 `json:"usd0,omitempty"`
	USD1      float64 `json:"usd1,omitempty"`
}

// weightSnapshot fetches every input the emission engine needs and
// returns the positions grouped by miner alongside each pool's emission
// share, so /positions and /weights can share the same read path.
func (s *Server) weightSnapshot(ctx context.Context) (positionsByMiner map[string][]types.Position, poolEmissions map[string]float64, err error) {
	votes, err := store.AllVotes()
	if err != nil {
		return nil, nil, err
	}

	multipliers := emissions.VoterMultipliers(s.Holders.All())
	poolEmissions = emissions.PoolEmissions(votes, multipliers)

	bindings, err := store.AllBindings()
	if err != nil {
		return nil, nil, err
	}
	externalToVoter := make(map[string]string, len(bindings))
	owners := make([]string, 0, len(bindings))
	for _, b := range bindings {
		externalToVoter[strings.ToLower(b.External)] = b.Voter
		owners = append(owners, b.External)
	}

	targetPools := make(map[string]bool)
	for _, v := range votes {
		for _, pw := range v.Pools {
			targetPools[pw.Pool] = true
		}
	}
	cached, err := store.AllPoolMetadata()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range cached {
		targetPools[p.Address] = true
	}

	positions, err := s.PF.Positions(ctx, owners, targetPools)
	if err != nil {
		return nil, nil, err
	}

	positionsByMiner = make(map[string][]types.Position)
	for _, p := range positions {
		voter, ok := externalToVoter[strings.ToLower(p.Owner)]
		if !ok {
			continue
		}
		positionsByMiner[voter] = append(positionsByMiner[voter], p)
	}

	return positionsByMiner, poolEmissions, nil
}

// scoresByPositionID normalizes every position across all miners at
// once: NormalizeScoresByPool divides each position's raw score by its
// pool's total across every holder of that pool, so scoring a single
// miner's positions in isolation would silently renormalize them to 1
// regardless of how much of the pool they actually hold.
func scoresByPositionID(positionsByMiner map[string][]types.Position) map[string]types.PositionScore {
	var all []types.Position
	for _, positions := range positionsByMiner {
		all = append(all, positions...)
	}

	scoreByID := make(map[string]types.PositionScore, len(all))
	for _, sc := range emissions.NormalizeScoresByPool(all) {
		scoreByID[sc.PositionID] = sc
	}
	return scoreByID
}

// enrichPositions attaches each position's precomputed normalized score
// and presentation-only token amounts/USD values to a flat slice.
func (s *Server) enrichPositions(ctx context.Context, miner string, positions []types.Position, scoreByID map[string]types.PositionScore) []positionView {
	out := make([]positionView, 0, len(positions))
	for _, p := range positions {
		amount0, amount1 := p.CurrentAmounts()
		humanAmount0 := scaleToDecimals(amount0, p.Token0.Decimals)
		humanAmount1 := scaleToDecimals(amount1, p.Token1.Decimals)

		view := positionView{
			PositionScore: scoreByID[p.ID],
			Owner:         p.Owner,
			Miner:         miner,
			Amount0:       humanAmount0,
			Amount1:       humanAmount1,
			Symbol0:       p.Token0.Symbol,
			Symbol1:       p.Token1.Symbol,
		}

		if s.Oracle != nil && s.Oracle.Enabled() {
			if price, ok := s.Oracle.USDPrice(ctx, p.Token0.Symbol); ok {
				view.USD0 = humanAmount0 * price
			}
			if price, ok := s.Oracle.USDPrice(ctx, p.Token1.Symbol); ok {
				view.USD1 = humanAmount1 * price
			}
		}

		out = append(out, view)
	}
	return out
}

// scaleToDecimals rescales a raw base-unit amount to human units via an
// intermediate SDK integer, avoiding the rounding drift a direct
// float64 division by 10^decimals would accumulate.
func scaleToDecimals(rawAmount float64, decimals int) float64 {
	raw, err := mathutil.Float64ToSDKInt(rawAmount, 0)
	if err != nil {
		return 0
	}
	human, err := mathutil.SDKIntToFloat64(raw, decimals)
	if err != nil {
		return 0
	}
	return human
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positionsByMiner, _, err := s.weightSnapshot(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.UpstreamError))
		return
	}

	hotkey := r.URL.Query().Get("hotkey")
	poolFilter := strings.ToLower(r.URL.Query().Get("pool"))
	scoreByID := scoresByPositionID(positionsByMiner)

	var out []positionView
	for miner, positions := range positionsByMiner {
		if hotkey != "" && miner != hotkey {
			continue
		}
		filtered := positions
		if poolFilter != "" {
			filtered = nil
			for _, p := range positions {
				if strings.ToLower(p.Pool.ID) == poolFilter {
					filtered = append(filtered, p)
				}
			}
		}
		out = append(out, s.enrichPositions(r.Context(), miner, filtered, scoreByID)...)
	}
	writeSuccess(w, out)
}

func (s *Server) handlePositionsForMiner(w http.ResponseWriter, r *http.Request) {
	miner := mux.Vars(r)["miner"]

	positionsByMiner, _, err := s.weightSnapshot(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.UpstreamError))
		return
	}

	scoreByID := scoresByPositionID(positionsByMiner)
	writeSuccess(w, s.enrichPositions(r.Context(), miner, positionsByMiner[miner], scoreByID))
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	positionsByMiner, poolEmissions, err := s.weightSnapshot(r.Context())
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.UpstreamError))
		return
	}

	weights := emissions.MinerWeights(positionsByMiner, poolEmissions)
	writeSuccess(w, weights)
}

func (s *Server) handleVoteCooldown(w http.ResponseWriter, r *http.Request) {
	voter := mux.Vars(r)["voter"]

	latest, err := store.LatestVoteChange(voter)
	if err != nil && err != sql.ErrNoRows {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}
	writeSuccess(w, cooldown.StatusFor(latest, time.Now()))
}

type voteHistoryView struct {
	CurrentVote *types.Vote        `json:"current_vote,omitempty"`
	Changes     []types.VoteChange `json:"changes"`
}

func (s *Server) handleVoteHistory(w http.ResponseWriter, r *http.Request) {
	voter := mux.Vars(r)["voter"]

	changes, err := store.VoteHistory(voter)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}

	view := voteHistoryView{Changes: changes}
	if vote, err := store.GetVote(voter); err == nil {
		view.CurrentVote = &vote
	} else if err != sql.ErrNoRows {
		writeAPIError(w, apierr.Wrap(apierr.DatabaseError))
		return
	}

	writeSuccess(w, view)
}
