package ai

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/rules"
	"github.com/dmmcquay/goban-mcp/internal/scoring"
)

type node struct {
	parent *node
	move   board.Point
	// mover is the player whose move led here; wins are counted for them.
	mover board.Stone

	pos      rules.Position
	passes   int
	captures scoring.Captures

	untried  []board.Point
	children []*node
	prior    map[board.Point]float64
	priorHit float64

	visits int
	wins   float64
}

func (n *node) terminal() bool {
	return n.passes >= 2
}

type searcher struct {
	komi   float64
	params Params
	rng    *rand.Rand
}

func newNode(parent *node, move board.Point, mover board.Stone, pos rules.Position, passes int, caps scoring.Captures, s *searcher) *node {
	n := &node{
		parent:   parent,
		move:     move,
		mover:    mover,
		pos:      pos,
		passes:   passes,
		captures: caps,
	}
	if n.terminal() {
		return n
	}

	n.untried = rules.LegalMoves(pos)
	s.rng.Shuffle(len(n.untried), func(i, j int) {
		n.untried[i], n.untried[j] = n.untried[j], n.untried[i]
	})
	if len(n.untried) == 0 {
		n.untried = []board.Point{board.NoPoint}
	}
	if s.params.UsePrior {
		n.prior = priors(pos, n.untried)
	}
	return n
}

// uct is the selection value of child c seen from its parent.
func (s *searcher) uct(parent, c *node) float64 {
	v := float64(c.visits)
	value := c.wins/v + s.params.Exploration*math.Sqrt(math.Log(float64(parent.visits))/v)
	if s.params.UsePrior {
		value += s.params.PriorWeight * c.priorHit / (1 + v)
	}
	return value
}

func (s *searcher) selectLeaf(root *node) *node {
	cur := root
	for len(cur.untried) == 0 && len(cur.children) > 0 {
		best := cur.children[0]
		bestValue := math.Inf(-1)
		for _, c := range cur.children {
			if v := s.uct(cur, c); v > bestValue {
				best, bestValue = c, v
			}
		}
		cur = best
	}
	return cur
}

func (s *searcher) expand(n *node) *node {
	if n.terminal() || len(n.untried) == 0 {
		return n
	}

	move := n.untried[len(n.untried)-1]
	n.untried = n.untried[:len(n.untried)-1]
	mover := n.pos.ToPlay

	var child *node
	if move.IsNone() {
		next := rules.Position{Board: n.pos.Board, ToPlay: mover.Opponent(), Ko: board.NoPoint}
		child = newNode(n, move, mover, next, n.passes+1, n.captures, s)
	} else {
		out, err := rules.Play(n.pos, move)
		if err != nil {
			// LegalMoves already filtered this out; treat as exhausted.
			return n
		}
		caps := n.captures
		if mover == board.Black {
			caps.Black += len(out.Captured)
		} else {
			caps.White += len(out.Captured)
		}
		next := rules.Position{Board: out.Board, ToPlay: mover.Opponent(), Ko: out.Ko}
		child = newNode(n, move, mover, next, 0, caps, s)
	}
	child.priorHit = n.prior[move]

	n.children = append(n.children, child)
	return child
}

func (s *searcher) simulate(n *node) board.Stone {
	if n.terminal() {
		return scoring.Calculate(n.pos.Board, n.captures, s.komi).Winner()
	}
	return playout(n.pos, n.passes, n.captures, s.komi, s.params.MaxPlayoutMoves, s.rng).Winner()
}

func backprop(n *node, winner board.Stone) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.visits++
		switch winner {
		case cur.mover:
			cur.wins++
		case board.Empty:
			cur.wins += 0.5
		}
	}
}

func chooseMCTS(ctx context.Context, st *game.State, p Params) (Decision, error) {
	s := &searcher{komi: st.Komi(), params: p, rng: p.rng()}

	root := newNode(nil, board.NoPoint, st.ToPlay().Opponent(), st.Position(), st.Passes(), st.Captures(), s)

	var deadline time.Time
	if p.Timeout > 0 {
		deadline = time.Now().Add(p.Timeout)
	}

	iterations := 0
	for ; iterations < p.Iterations; iterations++ {
		if ctx.Err() != nil {
			break
		}
		if iterations > 0 && !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		leaf := s.selectLeaf(root)
		leaf = s.expand(leaf)
		backprop(leaf, s.simulate(leaf))
	}

	if len(root.children) == 0 {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		return passDecision(st, MCTS), nil
	}

	ranked := make([]*node, len(root.children))
	copy(ranked, root.children)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].visits > ranked[j].visits
	})

	cands := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		cands = append(cands, Candidate{
			Point:   c.move,
			Visits:  c.visits,
			WinRate: c.wins / float64(c.visits),
		})
	}

	best := ranked[0]
	return Decision{
		Point:      best.move,
		Pass:       best.move.IsNone(),
		Player:     st.ToPlay(),
		Strategy:   MCTS,
		Iterations: iterations,
		Visits:     best.visits,
		WinRate:    best.wins / float64(best.visits),
		Candidates: top(cands, p.Candidates),
	}, nil
}
