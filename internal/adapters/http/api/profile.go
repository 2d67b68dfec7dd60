package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/types"
)

const maxWriteBody = 1 << 20

// stageRequest is one played chart as the client reports it. A missing
// "no" or "sheet" decodes as -1 and is skipped by the merge; a missing
// score is 0.
type stageRequest struct {
	No    int   `json:"no"`
	Sheet int   `json:"sheet"`
	NData int64 `json:"n_data"`
	Score int64 `json:"score"`
}

func (s *stageRequest) UnmarshalJSON(data []byte) error {
	type plain stageRequest
	v := plain{No: -1, Sheet: -1}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = stageRequest(v)
	return nil
}

type writeRequest struct {
	SessionID string         `json:"session_id"`
	Stages    []stageRequest `json:"stages"`
}

func (r writeRequest) validate() error {
	if r.Stages == nil {
		return errors.New("missing stages")
	}
	return nil
}

func (r writeRequest) toDomain(refID string) types.WriteRequest {
	stages := make([]ledger.Stage, len(r.Stages))
	for i, st := range r.Stages {
		stages[i] = ledger.Stage{Song: st.No, Slot: st.Sheet, MedalField: st.NData, Score: st.Score}
	}
	return types.WriteRequest{RefID: refID, SessionID: r.SessionID, Stages: stages}
}

type writeResponse struct {
	Status string `json:"status"`
	types.WriteResult
}

// ProfileHandler handles profile reads and writes.
type ProfileHandler struct {
	deps ProfileDependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

// HandleProfile routes GET /profile/{ref_id} and POST /profile/{ref_id}/write.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	refID, rest := pathRef(r.URL.Path, "/profile/")
	if refID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrRefID)
		return
	}
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		h.handleRead(w, r, refID)
	case len(rest) == 1 && rest[0] == "write" && r.Method == http.MethodPost:
		h.handleWrite(w, r, refID)
	default:
		http.NotFound(w, r)
	}
}

func (h *ProfileHandler) handleRead(w http.ResponseWriter, r *http.Request, refID string) {
	const op = "api.read_profile"
	p, err := h.deps.ReadProfile(r.Context(), refID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleWrite(w http.ResponseWriter, r *http.Request, refID string) {
	const op = "api.write_profile"
	var req writeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWriteBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Write(r.Context(), req.toDomain(refID))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	status := "merged"
	if res.Duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, writeResponse{Status: status, WriteResult: res})
}
