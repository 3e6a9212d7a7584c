package api

// RouteRequest is the JSON body for POST /api/v1/route. Exactly one of End
// and EndNodeID is set. A missing Avoid list selects the server's default
// policy; an empty list routes on distance alone.
type RouteRequest struct {
	Start     LatLngJSON  `json:"start"`
	End       *LatLngJSON `json:"end,omitempty"`
	EndNodeID string      `json:"end_node_id,omitempty"`
	Avoid     []AvoidJSON `json:"avoid"`
}

// AvoidJSON is one avoidance rule. A zero multiplier selects the default
// stairs penalty.
type AvoidJSON struct {
	Tag        string  `json:"tag"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	TotalDistanceMeters float64         `json:"total_distance_meters"`
	Cost                float64         `json:"cost"`
	HasAvoidedTag       bool            `json:"has_avoided_tag"`
	StartSnapMeters     float64         `json:"start_snap_meters"`
	EndSnapMeters       float64         `json:"end_snap_meters"`
	Nodes               []RouteNodeJSON `json:"nodes"`
	Geometry            []LatLngJSON    `json:"geometry"`
}

// RouteNodeJSON is one junction along a route.
type RouteNodeJSON struct {
	ID             string   `json:"id"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Tags           []string `json:"tags,omitempty"`
	DistanceMeters float64  `json:"distance_meters"`
	Avoided        bool     `json:"avoided,omitempty"`
}

// PolylineResponse is returned after a polyline is stored.
type PolylineResponse struct {
	ID      string   `json:"id"`
	NodeIDs []string `json:"node_ids"`
	Edges   int      `json:"edges"`
}

// TagsRequest is the JSON body for PUT /api/v1/nodes/{id}/tags.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// NodeJSON describes a junction.
type NodeJSON struct {
	ID             string   `json:"id"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Tags           []string `json:"tags"`
	Degree         int      `json:"degree"`
	DistanceMeters float64  `json:"distance_meters"`
}

// SnapRequest is the JSON body for POST /api/v1/snap: a point in a view at
// the given zoom level.
type SnapRequest struct {
	Point LatLngJSON `json:"point"`
	Zoom  float64    `json:"zoom,omitempty"`
}

// SplitRequest is the JSON body for POST /api/v1/edges/{id}/split.
type SplitRequest struct {
	Point LatLngJSON `json:"point"`
}

// SnapResponse reports what a point snapped to.
type SnapResponse struct {
	Kind     string     `json:"kind"`
	NodeID   string     `json:"node_id,omitempty"`
	EdgeID   string     `json:"edge_id,omitempty"`
	Ratio    float64    `json:"ratio,omitempty"`
	Pixels   float64    `json:"pixels"`
	Position LatLngJSON `json:"position"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes      int `json:"num_nodes"`
	NumEdges      int `json:"num_edges"`
	NumPolylines  int `json:"num_polylines"`
	NumComponents int `json:"num_components"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
