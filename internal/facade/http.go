package facade

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// Server exposes a Facade over HTTP. Route layout is grouped by
// domain the way the reference Moonraker bridge groups its own
// handlers (one registerXHandlers per concern), even though this
// server answers single-JSON-body tool calls rather than the
// Moonraker object-query protocol.
type Server struct {
	facade *Facade
	mux    *http.ServeMux
}

// NewServer wires an HTTP server around facade.
func NewServer(facade *Facade) *Server {
	s := &Server{facade: facade, mux: http.NewServeMux()}
	s.registerWorkflowRoutes()
	s.registerPrinterRoutes()
	s.registerCameraRoutes()
	s.registerSlicerRoutes()
	s.registerIterationRoutes()
	s.mux.HandleFunc("GET /materials", s.handleListMaterials)
	s.mux.HandleFunc("POST /materials/compatibility", s.handleCheckMaterialCompatibility)
	s.mux.HandleFunc("POST /dimension/scale", s.handleScaleModel)
	s.mux.HandleFunc("POST /connect", s.handleConnect)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	return s
}

// Handler returns the wired mux for embedding in an http.Server.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeResult writes a facade method's already-JSON-encoded result
// verbatim. Facade methods never return malformed JSON, so no further
// validation happens here.
func writeResult(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, result)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- workflow routes -----------------------------------------------------

func (s *Server) registerWorkflowRoutes() {
	s.mux.HandleFunc("POST /workflow/start", s.handleStartWorkflow)
	s.mux.HandleFunc("GET /workflow/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("POST /workflow/approve", s.handleApproveCheckpoint)
}

func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req StartWorkflowRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.StartWorkflow(req))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetWorkflow(r.PathValue("id")))
}

func (s *Server) handleApproveCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req ApproveCheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.ApproveCheckpoint(req))
}

// --- printer routes ------------------------------------------------------

func (s *Server) registerPrinterRoutes() {
	s.mux.HandleFunc("GET /printer/status", s.handlePrinterStatus)
	s.mux.HandleFunc("POST /printer/submit", s.handleSubmitPrint)
	s.mux.HandleFunc("POST /printer/pause", s.handlePausePrint)
	s.mux.HandleFunc("POST /printer/resume", s.handleResumePrint)
	s.mux.HandleFunc("POST /printer/cancel", s.handleCancelPrint)
}

func (s *Server) handlePrinterStatus(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetPrinterStatus())
}

func (s *Server) handleSubmitPrint(w http.ResponseWriter, r *http.Request) {
	var req SubmitPrintRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.SubmitPrint(req))
}

func (s *Server) handlePausePrint(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.PausePrint())
}

func (s *Server) handleResumePrint(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.ResumePrint())
}

func (s *Server) handleCancelPrint(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.CancelPrint())
}

// --- camera routes -------------------------------------------------------

func (s *Server) registerCameraRoutes() {
	s.mux.HandleFunc("POST /camera/analyze", s.handleAnalyzeFrame)
	s.mux.HandleFunc("POST /camera/capture", s.handleCaptureAndAnalyze)
}

func (s *Server) handleAnalyzeFrame(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeFrameRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.AnalyzeFrame(req))
}

func (s *Server) handleCaptureAndAnalyze(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.CaptureAndAnalyze(r.Context()))
}

// --- slicer routes -------------------------------------------------------

func (s *Server) registerSlicerRoutes() {
	s.mux.HandleFunc("POST /slicer/slice", s.handleSlice)
	s.mux.HandleFunc("GET /slicer/validate", s.handleValidateModel)
}

func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	var req SliceRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.Slice(req))
}

func (s *Server) handleValidateModel(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.ValidateModel(r.URL.Query().Get("path")))
}

// --- iteration / recommender routes ---------------------------------------

func (s *Server) registerIterationRoutes() {
	s.mux.HandleFunc("POST /iteration/create", s.handleCreateIteration)
	s.mux.HandleFunc("POST /iteration/outcome", s.handleRecordOutcome)
	s.mux.HandleFunc("GET /iteration/list", s.handleListIterations)
	s.mux.HandleFunc("GET /iteration/stats", s.handleStatistics)
	s.mux.HandleFunc("POST /iteration/recommend", s.handleRecommend)
}

func (s *Server) handleCreateIteration(w http.ResponseWriter, r *http.Request) {
	var req CreateIterationRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.CreateIteration(req))
}

func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req RecordOutcomeRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.RecordOutcome(req))
}

func (s *Server) handleListIterations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	writeResult(w, s.facade.ListIterations(r.URL.Query().Get("model_name"), limit))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetStatistics(r.URL.Query().Get("model_name")))
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.Recommend(req))
}

// --- misc routes -----------------------------------------------------------

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.ListMaterials())
}

func (s *Server) handleCheckMaterialCompatibility(w http.ResponseWriter, r *http.Request) {
	var req CheckCompatibilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.CheckMaterialCompatibility(req))
}

func (s *Server) handleScaleModel(w http.ResponseWriter, r *http.Request) {
	var req ScaleModelRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, errorJSON(err))
		return
	}
	writeResult(w, s.facade.ScaleModel(req))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.Connect())
}

// handleEvents upgrades to a push-only WebSocket feed of printer
// status updates and workflow checkpoint transitions.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.facade.events.handleWebSocket(w, r)
}
