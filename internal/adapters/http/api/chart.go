package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/hiscore/internal/domain/ledger"
)

type chartResponse struct {
	Song        int    `json:"song"`
	Sheet       int    `json:"sheet"`
	Present     bool   `json:"present"`
	BestScore   uint32 `json:"best_score"`
	PlayCount   uint32 `json:"play_count"`
	ClearTier   string `json:"clear_tier"`
	ClearType   int    `json:"clear_type"`
	Packed      bool   `json:"packed"`
	PackedScore uint32 `json:"packed_score"`
	PackedMedal uint8  `json:"packed_medal"`
	PackedTier  string `json:"packed_tier"`
}

// ChartHandler serves the per-chart debug view.
type ChartHandler struct {
	deps ChartDependencies
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(deps ChartDependencies) *ChartHandler {
	return &ChartHandler{deps: deps}
}

// HandleGetChart handles GET /player/{ref_id}/chart?song=N&sheet=M requests.
func (h *ChartHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_chart"
	refID, rest := pathRef(r.URL.Path, "/player/")
	if r.Method != http.MethodGet || len(rest) != 1 || rest[0] != "chart" {
		http.NotFound(w, r)
		return
	}
	c, err := chartFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	view, err := h.deps.Chart(r.Context(), refID, c)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{
		Song:        c.Song,
		Sheet:       c.Slot,
		Present:     view.Present,
		BestScore:   view.Record.BestScore,
		PlayCount:   view.Record.PlayCount,
		ClearTier:   view.Record.ClearTier.String(),
		ClearType:   view.Record.ClearTier.Code(),
		Packed:      view.Packed,
		PackedScore: view.PackedScore,
		PackedMedal: view.PackedMedal,
		PackedTier:  view.PackedTier.String(),
	})
}

func chartFromQuery(r *http.Request) (ledger.ChartID, error) {
	q := r.URL.Query()
	song, err := strconv.Atoi(q.Get("song"))
	if err != nil {
		return ledger.ChartID{}, errors.New("invalid song; must be an integer")
	}
	sheet, err := strconv.Atoi(q.Get("sheet"))
	if err != nil {
		return ledger.ChartID{}, errors.New("invalid sheet; must be an integer")
	}
	return ledger.ChartID{Song: song, Slot: sheet}, nil
}
