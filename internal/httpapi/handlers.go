package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"inferd/pkg/types"
)

type handlers struct{ svc Service }

// decodeJSON enforces the content type and body limit. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; keep 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// fail writes err unless the client or server is already gone.
func fail(w http.ResponseWriter, r *http.Request, rl reqLog, err error, msg string) {
	if shuttingDown(r.Context()) {
		return
	}
	status := statusFor(err)
	if msg == "" {
		msg = err.Error()
	}
	writeJSONError(w, status, msg)
	rl.end(status, err)
}

// generate godoc
// @Summary      Generate text
// @Description  Walks the provider chain until one provider answers. The exchange is appended to the conversation history.
// @Tags         generation
// @Accept       json
// @Produce      json
// @Param        request  body      types.GenerateRequest  true  "Generation request"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /generate [post]
func (h handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return
	}
	rl := startLog(r, "generate")
	rl.debug("input", req.Input)
	ctx, cancel := requestContext(r.Context())
	defer cancel()
	resp, err := h.svc.Generate(ctx, req)
	if err != nil {
		fail(w, r, rl, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
	rl.end(http.StatusOK, nil)
}

// generateImage godoc
// @Summary      Describe an image
// @Description  Tries vision providers in vision order, then the local fallback. Empty content means every backend failed.
// @Tags         generation
// @Accept       json
// @Produce      json
// @Param        request  body      types.ImageRequest  true  "Image request"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /generate/image [post]
func (h handlers) generateImage(w http.ResponseWriter, r *http.Request) {
	var req types.ImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rl := startLog(r, "image")
	ctx, cancel := requestContext(r.Context())
	defer cancel()
	resp, err := h.svc.GenerateImage(ctx, req)
	if err != nil {
		fail(w, r, rl, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
	rl.end(http.StatusOK, nil)
}

// agent godoc
// @Summary      Run the tool-calling loop
// @Description  Lets tool-capable providers call the built-in tools until they answer or the turn limit is reached.
// @Tags         generation
// @Accept       json
// @Produce      json
// @Param        request  body      types.AgentRequest  true  "Agent request"
// @Success      200      {object}  types.AgentResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /agent [post]
func (h handlers) agent(w http.ResponseWriter, r *http.Request) {
	var req types.AgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return
	}
	if req.MaxTurns < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_turns must not be negative")
		return
	}
	rl := startLog(r, "agent")
	rl.debug("input", req.Input)
	ctx, cancel := requestContext(r.Context())
	defer cancel()
	resp, err := h.svc.Agent(ctx, req)
	if err != nil {
		// the loop already produced a user-facing message
		fail(w, r, rl, err, resp.Content)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	rl.end(http.StatusOK, nil)
}

// clearHistory godoc
// @Summary  Clear conversation history
// @Tags     generation
// @Success  204
// @Router   /history [delete]
func (h handlers) clearHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// providers godoc
// @Summary  List providers in chain order
// @Tags     status
// @Produce  json
// @Success  200  {object}  types.ProvidersResponse
// @Router   /providers [get]
func (h handlers) providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Providers())
}

// status godoc
// @Summary  Scheduler and retry status
// @Tags     status
// @Produce  json
// @Success  200  {object}  types.StatusResponse
// @Router   /status [get]
func (h handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// evict godoc
// @Summary  Evict resident slots
// @Tags     scheduler
// @Param    keep_critical  query  bool  false  "Keep critical slots resident (default true)"
// @Success  204
// @Failure  400  {object}  types.ErrorResponse
// @Router   /scheduler/evict [post]
func (h handlers) evict(w http.ResponseWriter, r *http.Request) {
	keep := true
	if v := r.URL.Query().Get("keep_critical"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "keep_critical must be a boolean")
			return
		}
		keep = b
	}
	if err := h.svc.Evict(keep); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// warm godoc
// @Summary  Warm a slot asynchronously
// @Tags     scheduler
// @Produce  json
// @Param    name  path  string  true  "Slot name"
// @Success  202  {object}  types.OperationResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /scheduler/slots/{name}/warm [post]
func (h handlers) warm(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Warm(chi.URLParam(r, "name"))
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, types.OperationResponse{OpID: id})
}

// release godoc
// @Summary  Mark a slot as recently used
// @Tags     scheduler
// @Param    name  path  string  true  "Slot name"
// @Success  204
// @Failure  404  {object}  types.ErrorResponse
// @Router   /scheduler/slots/{name}/release [post]
func (h handlers) release(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReleaseSlot(chi.URLParam(r, "name")); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// operation godoc
// @Summary  Warm-up operation status
// @Tags     scheduler
// @Produce  json
// @Param    id  path  string  true  "Operation id"
// @Success  200  {object}  types.OperationStatus
// @Failure  404  {object}  types.ErrorResponse
// @Router   /scheduler/ops/{id} [get]
func (h handlers) operation(w http.ResponseWriter, r *http.Request) {
	op, err := h.svc.Operation(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, op)
}
