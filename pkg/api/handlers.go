package api

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"access_router/pkg/editor"
	"access_router/pkg/geo"
	"access_router/pkg/graph"
	"access_router/pkg/metrics"
	"access_router/pkg/polyline"
	"access_router/pkg/routing"
	"access_router/pkg/store"
)

const (
	maxRouteBody    = 4 << 10
	maxPolylineBody = 1 << 20
)

// Handlers holds the HTTP handlers and their dependencies.
//
// The graph behind session and router is single-writer: reads share mu,
// edits hold it exclusively.
type Handlers struct {
	mu      sync.RWMutex
	session *editor.Session
	router  routing.Router

	store         store.Store
	metrics       *metrics.Collector
	log           *zap.Logger
	defaultPolicy routing.Policy
	maxSnapMeters float64
	snapPixels    float64
	zoom          float64
}

// Option configures Handlers.
type Option func(*Handlers)

// WithStore persists every successful edit to s.
func WithStore(s store.Store) Option {
	return func(h *Handlers) { h.store = s }
}

// WithMetrics records request outcomes and graph size in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(h *Handlers) { h.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handlers) { h.log = l }
}

// WithDefaultPolicy sets the policy for route requests without an avoid list.
func WithDefaultPolicy(p routing.Policy) Option {
	return func(h *Handlers) { h.defaultPolicy = p }
}

// WithSnapping sets the geographic radius for nearest-node lookups and the
// screen radius and default zoom for editor snapping.
func WithSnapping(maxMeters, pixels, zoom float64) Option {
	return func(h *Handlers) {
		h.maxSnapMeters, h.snapPixels, h.zoom = maxMeters, pixels, zoom
	}
}

// NewHandlers creates handlers over an editing session and a router reading
// the same graph.
func NewHandlers(session *editor.Session, router routing.Router, opts ...Option) *Handlers {
	h := &Handlers{
		session:       session,
		router:        router,
		log:           zap.NewNop(),
		defaultPolicy: routing.AvoidStairs(),
		maxSnapMeters: routing.DefaultMaxSnapMeters,
		snapPixels:    editor.DefaultSnapThresholdPixels,
		zoom:          18,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.mu.RLock()
	h.recordSizeLocked()
	h.mu.RUnlock()
	return h
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		if h.metrics != nil {
			h.metrics.ObserveRoute(outcome, time.Since(started))
		}
	}()

	if !isJSON(r) {
		outcome = metrics.OutcomeBadRequest
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBody)).Decode(&req); err != nil {
		outcome = metrics.OutcomeBadRequest
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}

	if !validCoord(req.Start) {
		outcome = metrics.OutcomeBadRequest
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start", "")
		return
	}
	if (req.End == nil) == (req.EndNodeID == "") {
		outcome = metrics.OutcomeBadRequest
		writeError(w, http.StatusBadRequest, "invalid_request", "end", "exactly one of end and end_node_id is required")
		return
	}
	if req.End != nil && !validCoord(*req.End) {
		outcome = metrics.OutcomeBadRequest
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end", "")
		return
	}
	policy, err := h.policy(req.Avoid)
	if err != nil {
		outcome = metrics.OutcomeBadRequest
		writeError(w, http.StatusBadRequest, "invalid_avoid", "avoid", err.Error())
		return
	}

	start := toLatLng(req.Start)
	h.mu.RLock()
	var result *routing.RouteResult
	if req.End != nil {
		result, err = h.router.Route(r.Context(), start, toLatLng(*req.End), policy)
	} else {
		result, err = h.router.RouteToNode(r.Context(), start, graph.NodeID(req.EndNodeID), policy)
	}
	h.mu.RUnlock()

	if err != nil {
		switch {
		case errors.Is(err, routing.ErrPointTooFar):
			outcome = metrics.OutcomeTooFar
			writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_path", "", err.Error())
		case errors.Is(err, routing.ErrNoRoute):
			outcome = metrics.OutcomeNoRoute
			writeError(w, http.StatusNotFound, "no_route_found", "", "")
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			outcome = metrics.OutcomeTimeout
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "", "")
		default:
			outcome = metrics.OutcomeError
			h.log.Error("route failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, routeResponse(result))
}

func routeResponse(result *routing.RouteResult) RouteResponse {
	resp := RouteResponse{
		TotalDistanceMeters: result.TotalDistanceMeters,
		HasAvoidedTag:       result.HasAvoidedTag,
		StartSnapMeters:     result.StartSnapMeters,
		EndSnapMeters:       result.EndSnapMeters,
		Geometry:            make([]LatLngJSON, len(result.Geometry)),
	}
	if result.Path != nil {
		resp.Cost = result.Path.Cost
		resp.Nodes = make([]RouteNodeJSON, len(result.Path.Nodes))
		for i, n := range result.Path.Nodes {
			resp.Nodes[i] = RouteNodeJSON{
				ID:             string(n.ID),
				Lat:            n.Position.Lat,
				Lng:            n.Position.Lng,
				Tags:           tagStrings(n.Tags),
				DistanceMeters: n.DistanceMeters,
				Avoided:        n.Avoided,
			}
		}
	}
	for i, ll := range result.Geometry {
		resp.Geometry[i] = LatLngJSON{Lat: ll.Lat, Lng: ll.Lng}
	}
	return resp
}

// policy resolves the request's avoid list against the server default.
func (h *Handlers) policy(avoid []AvoidJSON) (routing.Policy, error) {
	if avoid == nil {
		return h.defaultPolicy, nil
	}
	p := make(routing.Policy, 0, len(avoid))
	for _, a := range avoid {
		m := a.Multiplier
		if m == 0 {
			m = routing.DefaultStairsPenalty
		}
		p = append(p, routing.AvoidRule{Tag: graph.Tag(a.Tag), Multiplier: m})
	}
	return p, p.Validate()
}

// HandleListPolylines handles GET /api/v1/polylines.
func (h *Handlers) HandleListPolylines(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ps := h.session.Polylines()
	h.mu.RUnlock()

	data, err := polyline.MarshalCollection(ps)
	if err != nil {
		h.log.Error("encode polylines", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

// HandleGetPolyline handles GET /api/v1/polylines/{id}.
func (h *Handlers) HandleGetPolyline(w http.ResponseWriter, r *http.Request) {
	id := graph.PolylineID(mux.Vars(r)["id"])

	h.mu.RLock()
	p, ok := h.session.Polyline(id)
	h.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown_polyline", "id", "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePutPolyline handles PUT /api/v1/polylines/{id}: add, or replace the
// geometry of an existing polyline.
func (h *Handlers) HandlePutPolyline(w http.ResponseWriter, r *http.Request) {
	id := graph.PolylineID(mux.Vars(r)["id"])
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}

	var p polyline.Polyline
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPolylineBody)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}
	if p.ID != "" && p.ID != id {
		writeError(w, http.StatusBadRequest, "id_mismatch", "id", "")
		return
	}
	p.ID = id
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_polyline", "", err.Error())
		return
	}

	h.mu.Lock()
	res, err := h.session.AddPolyline(&p)
	if err == nil {
		err = h.persistLocked("put_polyline")
	}
	h.mu.Unlock()

	if err != nil {
		h.log.Error("store polyline", zap.String("polyline", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
		return
	}

	resp := PolylineResponse{ID: string(res.ID), NodeIDs: make([]string, len(res.Nodes)), Edges: len(res.Edges)}
	for i, n := range res.Nodes {
		resp.NodeIDs[i] = string(n.ID())
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeletePolyline handles DELETE /api/v1/polylines/{id}. Unknown ids
// succeed without change.
func (h *Handlers) HandleDeletePolyline(w http.ResponseWriter, r *http.Request) {
	id := graph.PolylineID(mux.Vars(r)["id"])

	h.mu.Lock()
	var err error
	if h.session.RemovePolyline(id) {
		err = h.persistLocked("delete_polyline")
	}
	h.mu.Unlock()

	if err != nil {
		h.log.Error("delete polyline", zap.String("polyline", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePutNodeTags handles PUT /api/v1/nodes/{id}/tags. Unknown ids succeed
// without change.
func (h *Handlers) HandlePutNodeTags(w http.ResponseWriter, r *http.Request) {
	id := graph.NodeID(mux.Vars(r)["id"])
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}

	var req TagsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}
	tags := make([]graph.Tag, 0, len(req.Tags))
	for _, t := range req.Tags {
		if t == "" {
			writeError(w, http.StatusBadRequest, "invalid_tag", "tags", "")
			return
		}
		tags = append(tags, graph.Tag(t))
	}

	h.mu.Lock()
	var err error
	if h.session.UpdateNodeTags(id, tags) {
		err = h.persistLocked("update_tags")
	}
	h.mu.Unlock()

	if err != nil {
		h.log.Error("update tags", zap.String("node", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleNearestNode handles GET /api/v1/nodes/nearest?lat=&lng=[&max_meters=].
func (h *Handlers) HandleNearestNode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil || !geo.IsValidLatLng(lat, lng) {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "", "")
		return
	}
	maxMeters := h.maxSnapMeters
	if s := q.Get("max_meters"); s != "" {
		m, err := strconv.ParseFloat(s, 64)
		if err != nil || m <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "max_meters", "")
			return
		}
		maxMeters = m
	}

	h.mu.RLock()
	n, d, ok := h.session.Graph().NearestNode(graph.LatLng{Lat: lat, Lng: lng}, maxMeters)
	var resp NodeJSON
	if ok {
		resp = nodeJSON(n, d)
	}
	h.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no_node_nearby", "", "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeView reads a SnapRequest and returns the view it describes. The query
// point is the screen origin of the view. It writes the error response itself.
func (h *Handlers) decodeView(w http.ResponseWriter, r *http.Request) (editor.Projector, bool) {
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return nil, false
	}
	var req SnapRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return nil, false
	}
	if !validCoord(req.Point) {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "point", "")
		return nil, false
	}
	zoom := req.Zoom
	if zoom == 0 {
		zoom = h.zoom
	}
	if zoom < 0 || zoom > 24 {
		writeError(w, http.StatusBadRequest, "invalid_request", "zoom", "")
		return nil, false
	}
	return editor.NewWebMercator(zoom, toLatLng(req.Point)), true
}

// HandleSnap handles POST /api/v1/snap: where a point drawn at the given
// zoom would land, without changing the graph.
func (h *Handlers) HandleSnap(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.decodeView(w, r)
	if !ok {
		return
	}

	h.mu.RLock()
	snap := editor.NewSnapper(h.session.Graph(), proj, h.snapPixels).Snap(editor.ScreenPoint{}, "")
	resp := snapResponse(snap)
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

// HandlePlaceVertex handles POST /api/v1/vertices: a vertex drawn at the
// point snaps to a node, or splits the nearest edge, and reports where it
// landed.
func (h *Handlers) HandlePlaceVertex(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.decodeView(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	h.session.SetProjector(proj)
	pos, snap, err := h.session.PlaceVertex(editor.ScreenPoint{})
	if err == nil && snap.Kind == editor.SnapEdge {
		err = h.persistLocked("split_edge")
	}
	resp := snapResponse(snap)
	resp.Position = LatLngJSON{Lat: pos.Lat, Lng: pos.Lng}
	if n, found := h.session.Graph().FindNodeAt(pos); found {
		resp.NodeID = string(n.ID())
	}
	h.mu.Unlock()

	if err != nil {
		h.editError(w, "place vertex", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSplitEdge handles POST /api/v1/edges/{id}/split. The point is clamped
// onto the edge, and every polyline traversing it gains the new junction.
func (h *Handlers) HandleSplitEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := graph.ParseEdgeID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_edge_id", "id", "")
		return
	}
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}
	var req SplitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}
	if !validCoord(req.Point) {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "point", "")
		return
	}

	h.mu.Lock()
	var resp NodeJSON
	n, err := h.splitLocked(id, toLatLng(req.Point))
	if err == nil {
		resp = nodeJSON(n, 0)
		err = h.persistLocked("split_edge")
	}
	h.mu.Unlock()

	if err != nil {
		h.editError(w, "split edge", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// splitLocked clamps at onto the edge before splitting it. Callers hold mu.
func (h *Handlers) splitLocked(id graph.EdgeID, at graph.LatLng) (*graph.Node, error) {
	g := h.session.Graph()
	a, okA := g.Node(id.A)
	b, okB := g.Node(id.B)
	if _, ok := g.EdgeByID(id); !ok || !okA || !okB {
		return nil, errors.Wrapf(editor.ErrUnknownEdge, "%s", id)
	}
	pa, pb := a.Position(), b.Position()
	_, t := geo.PointToSegmentDist(at.Lat, at.Lng, pa.Lat, pa.Lng, pb.Lat, pb.Lng)
	lat, lng := geo.Interpolate(pa.Lat, pa.Lng, pb.Lat, pb.Lng, t)
	return h.session.SplitEdge(id, graph.LatLng{Lat: lat, Lng: lng})
}

// HandleMoveVertex handles POST /api/v1/polylines/{id}/vertices/{index}/move:
// the vertex is dragged to the point, snapping like a drawn vertex.
func (h *Handlers) HandleMoveVertex(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := graph.PolylineID(vars["id"])
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "index", "")
		return
	}
	proj, ok := h.decodeView(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	var resp NodeJSON
	h.session.SetProjector(proj)
	n, err := h.session.MoveVertex(id, index, editor.ScreenPoint{})
	if err == nil {
		resp = nodeJSON(n, 0)
		err = h.persistLocked("move_vertex")
	}
	h.mu.Unlock()

	if err != nil {
		h.editError(w, "move vertex", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// editError maps an editing failure to a response.
func (h *Handlers) editError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, editor.ErrUnknownEdge):
		writeError(w, http.StatusNotFound, "unknown_edge", "id", "")
	case errors.Is(err, editor.ErrUnknownPolyline):
		writeError(w, http.StatusNotFound, "unknown_polyline", "id", "")
	case errors.Is(err, editor.ErrVertexIndex):
		writeError(w, http.StatusBadRequest, "invalid_request", "index", err.Error())
	default:
		h.log.Error(op, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
	}
}

func snapResponse(snap editor.SnapResult) SnapResponse {
	resp := SnapResponse{
		Kind:     snap.Kind.String(),
		Ratio:    snap.Ratio,
		Pixels:   snap.Dist,
		Position: LatLngJSON{Lat: snap.Position.Lat, Lng: snap.Position.Lng},
	}
	if snap.Node != nil {
		resp.NodeID = string(snap.Node.ID())
	}
	if snap.Edge != nil {
		resp.EdgeID = snap.Edge.ID().String()
	}
	return resp
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	g := h.session.Graph()
	stats := StatsResponse{
		NumNodes:      g.NumNodes(),
		NumEdges:      g.NumEdges(),
		NumPolylines:  g.NumPolylines(),
		NumComponents: g.ComponentCount(),
	}
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, stats)
}

// persistLocked records an edit and saves every polyline. Callers hold mu.
func (h *Handlers) persistLocked(op string) error {
	if h.metrics != nil {
		h.metrics.ObserveMutation(op)
	}
	h.recordSizeLocked()
	if h.store == nil {
		return nil
	}
	return errors.Wrap(h.store.Save(h.session.Polylines()), "persist")
}

func (h *Handlers) recordSizeLocked() {
	if h.metrics == nil {
		return
	}
	g := h.session.Graph()
	h.metrics.SetGraphSize(g.NumNodes(), g.NumEdges(), g.NumPolylines())
}

func nodeJSON(n *graph.Node, dist float64) NodeJSON {
	return NodeJSON{
		ID:             string(n.ID()),
		Lat:            n.Position().Lat,
		Lng:            n.Position().Lng,
		Tags:           tagStrings(n.Tags()),
		Degree:         n.Degree(),
		DistanceMeters: dist,
	}
}

func tagStrings(tags []graph.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

func validCoord(ll LatLngJSON) bool {
	return geo.IsValidLatLng(ll.Lat, ll.Lng)
}

func toLatLng(ll LatLngJSON) graph.LatLng {
	return graph.LatLng{Lat: ll.Lat, Lng: ll.Lng}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field, detail string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field, Detail: detail})
}
