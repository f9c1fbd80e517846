package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/config"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/health"
	"github.com/dmmcquay/goban-mcp/internal/logging"
	"github.com/dmmcquay/goban-mcp/internal/ratelimit"
	"github.com/dmmcquay/goban-mcp/internal/rules"
	"github.com/dmmcquay/goban-mcp/internal/scoring"
	"github.com/dmmcquay/goban-mcp/internal/session"
	"github.com/dmmcquay/goban-mcp/internal/sgf"
)

// Rejection kinds that are not move rejections. Move rejections use
// rules.KindName.
const (
	KindInvalidArgument = "InvalidArgument"
	KindGameNotFound    = "GameNotFound"
	KindTooManyGames    = "TooManyGames"
	KindInvalidSize     = "InvalidBoardSize"
	KindInvalidHandicap = "InvalidHandicap"
	KindInvalidKomi     = "InvalidKomi"
	KindNothingToUndo   = "NothingToUndo"
	KindMalformedSGF    = "MalformedRecord"
	KindUnknownStrategy = "UnknownStrategy"
	KindRateLimited     = "RateLimited"
)

// rejectionKind classifies errors caused by the caller. It returns "" for
// anything else.
func rejectionKind(err error) string {
	if kind := rules.KindName(err); kind != "" {
		return kind
	}
	switch {
	case errors.Is(err, errInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, session.ErrNotFound):
		return KindGameNotFound
	case errors.Is(err, session.ErrTooManySessions):
		return KindTooManyGames
	case errors.Is(err, game.ErrInvalidBoardSize):
		return KindInvalidSize
	case errors.Is(err, game.ErrInvalidHandicap):
		return KindInvalidHandicap
	case errors.Is(err, game.ErrInvalidKomi):
		return KindInvalidKomi
	case errors.Is(err, game.ErrNothingToUndo):
		return KindNothingToUndo
	case errors.Is(err, sgf.ErrMalformedRecord):
		return KindMalformedSGF
	case errors.Is(err, ai.ErrUnknownStrategy):
		return KindUnknownStrategy
	default:
		return ""
	}
}

// ToolsHandler manages the MCP tools for playing Go.
type ToolsHandler struct {
	sessions   *session.Manager
	cfg        *config.Config
	logger     logging.ContextLogger
	middleware *Middleware

	checker *health.Checker
	limiter *ratelimit.Limiter
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(sessions *session.Manager, cfg *config.Config, logger logging.ContextLogger) *ToolsHandler {
	return &ToolsHandler{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetMiddleware sets the middleware for the tools handler.
func (h *ToolsHandler) SetMiddleware(middleware *Middleware) {
	h.middleware = middleware
}

// SetHealth enables the health tool.
func (h *ToolsHandler) SetHealth(checker *health.Checker, limiter *ratelimit.Limiter) {
	h.checker = checker
	h.limiter = limiter
}

func (h *ToolsHandler) add(s *server.MCPServer, tool mcp.Tool, handler ToolHandler) {
	if h.middleware != nil {
		handler = h.middleware.WrapTool(tool.Name, handler)
	}
	s.AddTool(tool, server.ToolHandlerFunc(handler))
}

func gameIDParam() mcp.ToolOption {
	return mcp.WithString("gameId",
		mcp.Required(),
		mcp.Description("Game identifier returned by newGame or importSGF"),
	)
}

func pointParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("row", mcp.Required(), mcp.Description("Zero-based row, counted from the top")),
		mcp.WithNumber("col", mcp.Required(), mcp.Description("Zero-based column, counted from the left")),
	}
}

// RegisterTools registers all tools with the MCP server.
func (h *ToolsHandler) RegisterTools(s *server.MCPServer) {
	h.add(s, mcp.NewTool("newGame",
		mcp.WithDescription("Start a new game of Go and return its id"),
		mcp.WithNumber("boardSize",
			mcp.Description(fmt.Sprintf("Board size: 9, 13 or 19 (default: %d)", h.cfg.Engine.DefaultSize)),
		),
		mcp.WithNumber("komi",
			mcp.Description(fmt.Sprintf("Points given to White (default: %g)", h.cfg.Engine.DefaultKomi)),
		),
		mcp.WithNumber("handicap",
			mcp.Description("Black handicap stones placed on the star points: 0 or 2-9"),
		),
	), h.HandleNewGame)

	h.add(s, mcp.NewTool("isLegal",
		append([]mcp.ToolOption{
			mcp.WithDescription("Check whether the player to move may place a stone at a point"),
			gameIDParam(),
		}, pointParams()...)...,
	), h.HandleIsLegal)

	h.add(s, mcp.NewTool("placeStone",
		append([]mcp.ToolOption{
			mcp.WithDescription("Place a stone for the player to move, capturing any groups left without liberties"),
			gameIDParam(),
		}, pointParams()...)...,
	), h.HandlePlaceStone)

	h.add(s, mcp.NewTool("pass",
		mcp.WithDescription("Pass for the player to move. Two consecutive passes end the game"),
		gameIDParam(),
	), h.HandlePass)

	h.add(s, mcp.NewTool("undo",
		mcp.WithDescription("Take back the last move, pass or resignation"),
		gameIDParam(),
	), h.HandleUndo)

	h.add(s, mcp.NewTool("score",
		mcp.WithDescription("Score the current position: territory plus captures, komi to White"),
		gameIDParam(),
		mcp.WithString("format", mcp.Description("Output format: text (default) or json")),
	), h.HandleScore)

	h.add(s, mcp.NewTool("aiMove",
		mcp.WithDescription("Ask the AI for a move, optionally playing it"),
		gameIDParam(),
		mcp.WithString("strategy",
			mcp.Description(fmt.Sprintf("random, heuristic or mcts (default: %s)", h.cfg.AI.Strategy)),
		),
		mcp.WithNumber("iterations",
			mcp.Description(fmt.Sprintf("MCTS iterations, at most %d (default: %d)", h.cfg.AI.MaxIterations, h.cfg.AI.Iterations)),
		),
		mcp.WithNumber("exploration",
			mcp.Description(fmt.Sprintf("UCT exploration constant; 0 searches greedily (default: %.3f)", h.cfg.AI.Exploration)),
		),
		mcp.WithNumber("seed",
			mcp.Description("Random seed; a non-zero seed makes the answer reproducible"),
		),
		mcp.WithBoolean("apply",
			mcp.Description("Play the chosen move (default: false)"),
		),
	), h.HandleAIMove)

	h.add(s, mcp.NewTool("showBoard",
		mcp.WithDescription("Show the board, captures and game status"),
		gameIDParam(),
		mcp.WithString("format", mcp.Description("Output format: text (default) or json")),
	), h.HandleShowBoard)

	h.add(s, mcp.NewTool("resign",
		mcp.WithDescription("Resign the game for the player to move"),
		gameIDParam(),
	), h.HandleResign)

	h.add(s, mcp.NewTool("terminate",
		mcp.WithDescription("End the game now; the winner is decided by score"),
		gameIDParam(),
	), h.HandleTerminate)

	h.add(s, mcp.NewTool("exportSGF",
		mcp.WithDescription("Export the game as an SGF record"),
		gameIDParam(),
	), h.HandleExportSGF)

	h.add(s, mcp.NewTool("importSGF",
		mcp.WithDescription("Open a new game from an SGF record. Unreadable or illegal moves are skipped and reported"),
		mcp.WithString("sgf", mcp.Required(), mcp.Description("SGF content")),
	), h.HandleImportSGF)

	h.add(s, mcp.NewTool("closeGame",
		mcp.WithDescription("Discard a game"),
		gameIDParam(),
	), h.HandleCloseGame)

	if h.checker != nil {
		h.add(s, mcp.NewTool("health",
			mcp.WithDescription("Check server and engine health status"),
		), h.HandleHealth)
	}
}

// fail turns caller mistakes into tool error results named by their kind.
// Anything else is returned as an error.
func (h *ToolsHandler) fail(logger logging.ContextLogger, err error) (*mcp.CallToolResult, error) {
	if kind := rejectionKind(err); kind != "" {
		logger.Debug("Request rejected", "kind", kind, "error", err)
		return mcp.NewToolResultError(kind + ": " + err.Error()), nil
	}
	return nil, err
}

func (h *ToolsHandler) begin(ctx context.Context, tool string, request mcp.CallToolRequest) (logging.ContextLogger, arguments, error) {
	logger := h.logger.WithContext(ctx).WithField("tool", tool)
	args, err := parseArguments(request)
	return logger, args, err
}

// HandleNewGame handles the newGame tool.
func (h *ToolsHandler) HandleNewGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "newGame", request)
	if err != nil {
		return h.fail(logger, err)
	}

	opts := game.Options{}
	if opts.Size, err = args.optionalInt("boardSize", h.cfg.Engine.DefaultSize); err != nil {
		return h.fail(logger, err)
	}
	if opts.Komi, err = args.optionalFloat("komi", h.cfg.Engine.DefaultKomi); err != nil {
		return h.fail(logger, err)
	}
	if opts.Handicap, err = args.optionalInt("handicap", 0); err != nil {
		return h.fail(logger, err)
	}

	sess, err := h.sessions.Create(ctx, opts)
	if err != nil {
		return h.fail(logger, err)
	}

	return mcp.NewToolResultText(describe(sess.ID, sess.State())), nil
}

// HandleIsLegal handles the isLegal tool.
func (h *ToolsHandler) HandleIsLegal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "isLegal", request)
	if err != nil {
		return h.fail(logger, err)
	}
	sess, p, err := h.sessionAndPoint(args)
	if err != nil {
		return h.fail(logger, err)
	}

	st := sess.State()
	if err := st.Check(p); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("%s at %s is illegal: %s", colorName(st.ToPlay()), p, rules.KindName(err))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s at %s is legal", colorName(st.ToPlay()), p)), nil
}

// HandlePlaceStone handles the placeStone tool.
func (h *ToolsHandler) HandlePlaceStone(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "placeStone", request)
	if err != nil {
		return h.fail(logger, err)
	}
	sess, p, err := h.sessionAndPoint(args)
	if err != nil {
		return h.fail(logger, err)
	}

	st, err := h.sessions.Place(ctx, sess.ID, p)
	if err != nil {
		return h.fail(logger, err)
	}
	return mcp.NewToolResultText(describe(sess.ID, st)), nil
}

// HandlePass handles the pass tool.
func (h *ToolsHandler) HandlePass(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.transition(ctx, "pass", request, h.sessions.Pass)
}

// HandleUndo handles the undo tool.
func (h *ToolsHandler) HandleUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.transition(ctx, "undo", request, h.sessions.Undo)
}

// HandleResign handles the resign tool.
func (h *ToolsHandler) HandleResign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.transition(ctx, "resign", request, h.sessions.Resign)
}

// HandleTerminate handles the terminate tool.
func (h *ToolsHandler) HandleTerminate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.transition(ctx, "terminate", request, h.sessions.Terminate)
}

func (h *ToolsHandler) transition(ctx context.Context, tool string, request mcp.CallToolRequest, op func(context.Context, string) (*game.State, error)) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, tool, request)
	if err != nil {
		return h.fail(logger, err)
	}
	id, err := args.requireString("gameId")
	if err != nil {
		return h.fail(logger, err)
	}

	st, err := op(ctx, id)
	if err != nil {
		return h.fail(logger, err)
	}
	return mcp.NewToolResultText(describe(id, st)), nil
}

// HandleScore handles the score tool.
func (h *ToolsHandler) HandleScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "score", request)
	if err != nil {
		return h.fail(logger, err)
	}
	sess, format, err := h.sessionAndFormat(args)
	if err != nil {
		return h.fail(logger, err)
	}

	st := sess.State()
	score := st.Score()
	if format == "json" {
		return jsonResult(struct {
			GameID   string `json:"gameId"`
			Finished bool   `json:"finished"`
			Result   string `json:"result"`
			scoring.Score
		}{sess.ID, st.IsFinished(), score.Result(), score})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score for game %s", sess.ID)
	if !st.IsFinished() {
		sb.WriteString(" (game still in play)")
	}
	sb.WriteString("\n\n")
	sb.WriteString(scoring.Visualize(st.Board(), score))
	return mcp.NewToolResultText(sb.String()), nil
}

// aiMoveResult is the JSON answer of the aiMove tool.
type aiMoveResult struct {
	GameID    string      `json:"gameId"`
	Move      string      `json:"move"`
	Decision  ai.Decision `json:"decision"`
	Applied   bool        `json:"applied"`
	Cached    bool        `json:"cached"`
	Attempts  int         `json:"attempts"`
	Abandoned bool        `json:"abandoned,omitempty"`
	ToPlay    board.Stone `json:"toPlay"`
	Board     []string    `json:"board"`
	Result    string      `json:"result,omitempty"`
}

// HandleAIMove handles the aiMove tool.
func (h *ToolsHandler) HandleAIMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "aiMove", request)
	if err != nil {
		return h.fail(logger, err)
	}
	id, err := args.requireString("gameId")
	if err != nil {
		return h.fail(logger, err)
	}

	req, err := h.searchRequest(args)
	if err != nil {
		return h.fail(logger, err)
	}

	out, err := h.sessions.Suggest(ctx, id, req)
	if err != nil {
		return h.fail(logger, err)
	}

	logger.Info("AI move chosen",
		"strategy", string(out.Decision.Strategy),
		"move", out.Decision.Point.String(),
		"applied", out.Applied,
		"cached", out.Cached,
		"attempts", out.Attempts,
	)

	return jsonResult(aiMoveResult{
		GameID:    id,
		Move:      out.Decision.Point.String(),
		Decision:  out.Decision,
		Applied:   out.Applied,
		Cached:    out.Cached,
		Attempts:  out.Attempts,
		Abandoned: out.Abandoned,
		ToPlay:    out.State.ToPlay(),
		Board:     out.State.Board().Rows(),
		Result:    out.State.Result(),
	})
}

// searchRequest builds the search from the call arguments over the
// configured defaults. A seeded search runs without the time limit so that
// it stays reproducible.
func (h *ToolsHandler) searchRequest(args arguments) (session.SearchRequest, error) {
	name, err := args.optionalString("strategy", h.cfg.AI.Strategy)
	if err != nil {
		return session.SearchRequest{}, err
	}
	strategy, err := ai.ParseStrategy(name)
	if err != nil {
		return session.SearchRequest{}, err
	}

	params := ai.Params{
		UsePrior: h.cfg.AI.UsePrior,
		Timeout:  h.cfg.AI.Timeout,
	}
	if params.Iterations, err = args.optionalInt("iterations", h.cfg.AI.Iterations); err != nil {
		return session.SearchRequest{}, err
	}
	if params.Iterations < 1 {
		return session.SearchRequest{}, fmt.Errorf("%w: iterations must be positive", errInvalidArgument)
	}
	if params.Iterations > h.cfg.AI.MaxIterations {
		return session.SearchRequest{}, fmt.Errorf("%w: iterations must be at most %d", errInvalidArgument, h.cfg.AI.MaxIterations)
	}
	if params.Exploration, err = args.optionalFloat("exploration", h.cfg.AI.Exploration); err != nil {
		return session.SearchRequest{}, err
	}
	if params.Exploration < 0 {
		return session.SearchRequest{}, fmt.Errorf("%w: exploration must not be negative", errInvalidArgument)
	}
	if params.Exploration == 0 {
		params.Exploration = ai.NoExploration
	}
	if params.Seed, err = args.optionalInt64("seed", 0); err != nil {
		return session.SearchRequest{}, err
	}
	if params.Seed != 0 {
		params.Timeout = 0
	}

	apply, err := args.optionalBool("apply", false)
	if err != nil {
		return session.SearchRequest{}, err
	}

	return session.SearchRequest{Strategy: strategy, Params: params, Apply: apply}, nil
}

// HandleShowBoard handles the showBoard tool.
func (h *ToolsHandler) HandleShowBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "showBoard", request)
	if err != nil {
		return h.fail(logger, err)
	}
	sess, format, err := h.sessionAndFormat(args)
	if err != nil {
		return h.fail(logger, err)
	}

	if format == "json" {
		return jsonResult(sess.View())
	}
	return mcp.NewToolResultText(describe(sess.ID, sess.State())), nil
}

// HandleExportSGF handles the exportSGF tool.
func (h *ToolsHandler) HandleExportSGF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "exportSGF", request)
	if err != nil {
		return h.fail(logger, err)
	}
	id, err := args.requireString("gameId")
	if err != nil {
		return h.fail(logger, err)
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		return h.fail(logger, err)
	}
	return mcp.NewToolResultText(sgf.Encode(sess.State())), nil
}

// HandleImportSGF handles the importSGF tool.
func (h *ToolsHandler) HandleImportSGF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "importSGF", request)
	if err != nil {
		return h.fail(logger, err)
	}
	content, err := args.requireString("sgf")
	if err != nil {
		return h.fail(logger, err)
	}

	sess, issues, err := h.sessions.Import(ctx, content, game.Options{})
	if err != nil {
		return h.fail(logger, err)
	}

	var sb strings.Builder
	if len(issues) > 0 {
		fmt.Fprintf(&sb, "Skipped %d problem(s) while importing:\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(&sb, "  - %s\n", issue)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(describe(sess.ID, sess.State()))
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCloseGame handles the closeGame tool.
func (h *ToolsHandler) HandleCloseGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger, args, err := h.begin(ctx, "closeGame", request)
	if err != nil {
		return h.fail(logger, err)
	}
	id, err := args.requireString("gameId")
	if err != nil {
		return h.fail(logger, err)
	}
	if err := h.sessions.Close(ctx, id); err != nil {
		return h.fail(logger, err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Closed game %s", id)), nil
}

// HandleHealth handles the health tool.
func (h *ToolsHandler) HandleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := h.checker.CheckHealth(ctx)

	var sb strings.Builder
	sb.WriteString("Goban MCP Server Health Status\n")
	sb.WriteString("==============================\n")
	fmt.Fprintf(&sb, "Status: %s\n", resp.Status)
	fmt.Fprintf(&sb, "Server Version: %s\n", resp.Version)
	fmt.Fprintf(&sb, "Git Commit: %s\n", resp.GitCommit)
	fmt.Fprintf(&sb, "Open Games: %d/%d\n", h.sessions.Len(), h.sessions.MaxSessions())

	sb.WriteString("\nComponents:\n")
	for _, c := range resp.Components {
		fmt.Fprintf(&sb, "  %s: %s", c.Name, c.Status)
		if c.Message != "" {
			fmt.Fprintf(&sb, " (%s)", c.Message)
		}
		sb.WriteString("\n")
	}

	rl := h.limiter.GetStatus()
	sb.WriteString("\nRate Limiting:\n")
	fmt.Fprintf(&sb, "  Enabled: %v\n", rl.Enabled)
	if rl.Enabled {
		fmt.Fprintf(&sb, "  Requests/min: %d\n", rl.RequestsPerMin)
		fmt.Fprintf(&sb, "  Burst size: %d\n", rl.BurstSize)
		fmt.Fprintf(&sb, "  Active clients: %d\n", rl.ActiveClients)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *ToolsHandler) sessionAndPoint(args arguments) (*session.Session, board.Point, error) {
	id, err := args.requireString("gameId")
	if err != nil {
		return nil, board.NoPoint, err
	}
	row, err := args.requireInt("row")
	if err != nil {
		return nil, board.NoPoint, err
	}
	col, err := args.requireInt("col")
	if err != nil {
		return nil, board.NoPoint, err
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, board.NoPoint, err
	}
	return sess, board.Point{Row: row, Col: col}, nil
}

func (h *ToolsHandler) sessionAndFormat(args arguments) (*session.Session, string, error) {
	id, err := args.requireString("gameId")
	if err != nil {
		return nil, "", err
	}
	format, err := args.format()
	if err != nil {
		return nil, "", err
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, "", err
	}
	return sess, format, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
