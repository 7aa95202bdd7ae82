package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zenazn/goji/web"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/octree"
	"github.com/lwansbrough/craft2/storage"
	"github.com/lwansbrough/craft2/volume"
)

// WebAPIPath is the prefix of all HTTP API routes.
const WebAPIPath = "/api/"

const createVolumeSchema = `{
	"type": "object",
	"required": ["name", "size"],
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 64},
		"size": {
			"type": "array",
			"minItems": 3,
			"maxItems": 3,
			"items": {"type": "integer", "minimum": 1, "maximum": 256}
		},
		"voxels_per_meter": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

const voxelBatchSchema = `{
	"type": "object",
	"required": ["voxels"],
	"properties": {
		"voxels": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["x", "y", "z", "index"],
				"properties": {
					"x": {"type": "integer"},
					"y": {"type": "integer"},
					"z": {"type": "integer"},
					"index": {"type": "integer", "minimum": 0, "maximum": 255}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

// httpError writes a plain text error and logs it.
func httpError(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	errorMsg := fmt.Sprintf("%s (%s).", message, r.URL.Path)
	if status >= http.StatusInternalServerError {
		craft.Errorf("%s\n", errorMsg)
	} else {
		craft.Debugf("%d: %s\n", status, errorMsg)
	}
	http.Error(w, errorMsg, status)
}

// BadRequest writes a 400 with a formatted message.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusBadRequest, format, args...)
}

// NotFound writes a 404 with a formatted message.
func NotFound(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusNotFound, format, args...)
}

// Unauthorized writes a 401 with a formatted message.
func Unauthorized(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusUnauthorized, format, args...)
}

// Forbidden writes a 403 with a formatted message.
func Forbidden(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusForbidden, format, args...)
}

// ServerError writes a 500 with a formatted message.
func ServerError(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusInternalServerError, format, args...)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	NotFound(w, r, "no route for %s", r.Method)
}

func logRequests(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		timedLog := craft.NewTimeLog()
		h.ServeHTTP(w, r)
		timedLog.Debugf("HTTP %s: %s", r.Method, r.URL)
	}
	return http.HandlerFunc(fn)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		ServerError(w, r, "unable to encode response: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func writeBinary(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// readJSON reads a request body, validates it against schema, then decodes it into v.
func readJSON(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, v interface{}) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		BadRequest(w, r, "unable to read request body: %v", err)
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		BadRequest(w, r, "malformed JSON: %v", err)
		return false
	}
	if err := schema.Validate(doc); err != nil {
		BadRequest(w, r, "invalid request: %v", err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		BadRequest(w, r, "malformed request: %v", err)
		return false
	}
	return true
}

// liveVolume returns the volume named in the URL or writes a 404.
func (s *Server) liveVolume(c web.C, w http.ResponseWriter, r *http.Request) (*liveVolume, bool) {
	name := c.URLParams["name"]
	lv, found := s.volumes.get(name)
	if !found {
		NotFound(w, r, "volume %q not found", name)
		return nil, false
	}
	return lv, true
}

func (s *Server) publish(e storage.Event) {
	if err := s.events.Publish(e); err != nil {
		craft.Errorf("unable to publish %s event for volume %q: %v\n", e.Action, e.Volume, err)
	}
}

func (s *Server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, struct {
		Version string     `json:"version"`
		Host    string     `json:"host,omitempty"`
		Note    string     `json:"note,omitempty"`
		Store   string     `json:"store"`
		Volumes int        `json:"volumes"`
		Uptime  string     `json:"uptime"`
		Cache   cacheStats `json:"cache"`
	}{
		Version: craft.Version.String(),
		Host:    s.config.Server.Host,
		Note:    s.config.Server.Note,
		Store:   s.store.String(),
		Volumes: s.volumes.len(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Cache:   s.cache.stats(),
	})
}

func (s *Server) volumesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.volumes.names())
}

type createRequest struct {
	Name           string    `json:"name"`
	Size           [3]uint32 `json:"size"`
	VoxelsPerMeter uint32    `json:"voxels_per_meter"`
}

func (s *Server) createVolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !readJSON(w, r, s.createSchema, &req) {
		return
	}
	if err := storage.ValidName(req.Name); err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	if req.VoxelsPerMeter == 0 {
		req.VoxelsPerMeter = s.config.voxelsPerMeter()
	}
	v, err := volume.WithResolution(req.Size, req.VoxelsPerMeter)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	if _, err := s.volumes.add(req.Name, v); err != nil {
		httpError(w, r, http.StatusConflict, "volume %q already exists", req.Name)
		return
	}
	craft.Infof("Created volume %q of size %v, depth %d\n", req.Name, req.Size, v.Data.DepthMax())
	s.publish(storage.Event{Action: "create", Volume: req.Name, Grids: v.Data.Len()})
	writeJSON(w, r, struct {
		Name  string `json:"name"`
		Depth uint8  `json:"depth"`
	}{req.Name, v.Data.DepthMax()})
}

type volumeInfo struct {
	Name           string     `json:"name"`
	Version        uint64     `json:"version"`
	Depth          uint8      `json:"depth"`
	Size           [3]uint32  `json:"size"`
	Resolution     float32    `json:"resolution"`
	Extent         [3]float32 `json:"extent"`
	Grids          int        `json:"grids"`
	ReachableGrids int        `json:"reachable_grids"`
	FreeGrids      int        `json:"free_grids"`
	Materials      int        `json:"materials"`
	BufferBytes    int        `json:"buffer_bytes"`
	Memory         string     `json:"memory"`
}

func (s *Server) volumeInfoHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	lv.mu.Lock()
	stats := lv.vol.Data.Stats()
	info := volumeInfo{
		Name:           lv.name,
		Version:        lv.version,
		Depth:          lv.vol.Data.DepthMax(),
		Size:           lv.vol.Dims(),
		Resolution:     lv.vol.Resolution,
		Extent:         lv.vol.Extent(),
		Grids:          stats.Grids,
		ReachableGrids: stats.ReachableGrids,
		FreeGrids:      stats.FreeGrids,
		Materials:      stats.MaterialCells,
		BufferBytes:    lv.vol.BufferSize(),
		Memory:         humanize.Bytes(uint64(lv.vol.Footprint())),
	}
	lv.mu.Unlock()
	writeJSON(w, r, info)
}

type voxel struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Index uint32 `json:"index"`
}

// voxelsHandler writes a batch of voxels.  Every voxel is checked before any is written.
func (s *Server) voxelsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	var batch struct {
		Voxels []voxel `json:"voxels"`
	}
	if !readJSON(w, r, s.voxelSchema, &batch) {
		return
	}

	lv.mu.Lock()
	defer lv.mu.Unlock()
	for i, v := range batch.Voxels {
		if err := lv.vol.Check(v.X, v.Y, v.Z, v.Index); err != nil {
			BadRequest(w, r, "voxel %d: %v", i, err)
			return
		}
	}
	before := lv.vol.Data.Len()
	lv.vol.Data.Reserve(len(batch.Voxels))
	for i, v := range batch.Voxels {
		if err := lv.vol.Set(v.X, v.Y, v.Z, v.Index); err != nil {
			lv.version++
			ServerError(w, r, "voxel %d of %d in volume %q: %v", i, len(batch.Voxels), lv.name, err)
			return
		}
	}
	s.cache.drop(lv)
	lv.version++
	grids := lv.vol.Data.Len()
	s.publish(storage.Event{Action: "voxels", Volume: lv.name, Voxels: len(batch.Voxels), Grids: grids})
	writeJSON(w, r, struct {
		Written  int `json:"written"`
		Grids    int `json:"grids"`
		NewGrids int `json:"new_grids"`
	}{len(batch.Voxels), grids, grids - before})
}

func parseCoord(c web.C, key string) (int, error) {
	n, err := strconv.Atoi(c.URLParams[key])
	if err != nil {
		return 0, fmt.Errorf("bad %s coordinate %q", key, c.URLParams[key])
	}
	return n, nil
}

func (s *Server) voxelHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	var xyz [3]int
	for i, key := range []string{"x", "y", "z"} {
		n, err := parseCoord(c, key)
		if err != nil {
			BadRequest(w, r, "%v", err)
			return
		}
		xyz[i] = n
	}
	lv.mu.Lock()
	index, found, err := lv.vol.Get(xyz[0], xyz[1], xyz[2])
	var hex string
	if found {
		hex = lv.vol.Palette.Hex(uint8(index))
	}
	lv.mu.Unlock()
	switch {
	case errors.Is(err, octree.ErrInvalidCoordinate):
		BadRequest(w, r, "%v", err)
	case err != nil:
		ServerError(w, r, "%v", err)
	case !found:
		NotFound(w, r, "voxel %v of volume %q is empty", xyz, lv.name)
	default:
		writeJSON(w, r, struct {
			Index uint32 `json:"index"`
			Color string `json:"color"`
		}{index, hex})
	}
}

func (s *Server) paletteHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.URLParams["index"])
	if err != nil || index < 0 || index >= volume.PaletteSize {
		BadRequest(w, r, "palette index must be 0 to %d, got %q", volume.PaletteSize-1, c.URLParams["index"])
		return
	}
	var req struct {
		Color string `json:"color"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, craft.Kilo)).Decode(&req); err != nil {
		BadRequest(w, r, "malformed JSON: %v", err)
		return
	}
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if err := lv.vol.Palette.SetHex(uint8(index), req.Color); err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	s.cache.drop(lv)
	lv.version++
	s.publish(storage.Event{Action: "palette", Volume: lv.name})
	writeJSON(w, r, struct {
		Index int    `json:"index"`
		Color string `json:"color"`
	}{index, lv.vol.Palette.Hex(uint8(index))})
}

// parseVec3 parses "x,y,z" into a vector.
func parseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("expected x,y,z but got %q", s)
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return mgl32.Vec3{}, fmt.Errorf("bad component %q in %q", p, s)
		}
		v[i] = float32(f)
	}
	return v, nil
}

// raycastHandler returns the first filled voxel along ?origin=x,y,z&direction=x,y,z with an
// optional max distance in voxels.
func (s *Server) raycastHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	origin, err := parseVec3(query.Get("origin"))
	if err != nil {
		BadRequest(w, r, "origin: %v", err)
		return
	}
	direction, err := parseVec3(query.Get("direction"))
	if err != nil {
		BadRequest(w, r, "direction: %v", err)
		return
	}
	maxDist := float32(math.Inf(1))
	if m := query.Get("max"); m != "" {
		f, err := strconv.ParseFloat(m, 32)
		if err != nil || math.IsNaN(f) || f < 0 {
			BadRequest(w, r, "bad max distance %q", m)
			return
		}
		maxDist = float32(f)
	}
	lv.mu.Lock()
	hit, found, err := lv.vol.Raycast(origin, direction, maxDist)
	lv.mu.Unlock()
	if errors.Is(err, volume.ErrInvalidRay) {
		BadRequest(w, r, "%v", err)
		return
	}
	if err != nil {
		ServerError(w, r, "raycast in volume %q: %v", lv.name, err)
		return
	}
	if !found {
		NotFound(w, r, "ray from %v hit nothing in volume %q", origin, lv.name)
		return
	}
	writeJSON(w, r, struct {
		Voxel    [3]int  `json:"voxel"`
		Index    uint32  `json:"index"`
		Distance float32 `json:"distance"`
	}{hit.Voxel, hit.Index, hit.Distance})
}

func (s *Server) octreeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	lv.mu.Lock()
	data := lv.vol.Data.Bytes()
	depth := lv.vol.Data.DepthMax()
	lv.mu.Unlock()
	w.Header().Set("X-Octree-Depth", strconv.Itoa(int(depth)))
	writeBinary(w, data)
}

func (s *Server) gpuHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	lv.mu.Lock()
	data, cached := s.cache.get(lv)
	if !cached {
		data = lv.vol.Bytes()
		s.cache.put(lv, data)
	}
	lv.mu.Unlock()
	if cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeBinary(w, data)
}

func (s *Server) snapshotHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	lv, ok := s.liveVolume(c, w, r)
	if !ok {
		return
	}
	lv.mu.Lock()
	snap := storage.NewSnapshot(lv.name, lv.vol)
	lv.mu.Unlock()
	if err := s.snapshots.Save(r.Context(), snap); err != nil {
		ServerError(w, r, "%v", err)
		return
	}
	craft.Infof("Saved snapshot %s of volume %q (%d grids)\n", snap.UUID, lv.name, len(snap.Octree)/octree.GridBytes)
	s.publish(storage.Event{Action: "snapshot", Volume: lv.name, Grids: len(snap.Octree) / octree.GridBytes})
	writeJSON(w, r, struct {
		Name string `json:"name"`
		UUID string `json:"uuid"`
	}{snap.Name, snap.UUID})
}

func (s *Server) deleteVolumeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	lv, found := s.volumes.get(name)
	if !found || !s.volumes.remove(name) {
		NotFound(w, r, "volume %q not found", name)
		return
	}
	lv.mu.Lock()
	s.cache.drop(lv)
	lv.mu.Unlock()
	if err := s.snapshots.Delete(r.Context(), name); err != nil {
		ServerError(w, r, "volume %q removed but its snapshot remains: %v", name, err)
		return
	}
	craft.Infof("Deleted volume %q\n", name)
	s.publish(storage.Event{Action: "delete", Volume: name})
	writeJSON(w, r, struct {
		Deleted string `json:"deleted"`
	}{name})
}
