package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
	"github.com/erbuka/pathtracing/pkg/material"
	"github.com/erbuka/pathtracing/pkg/renderer"
	"github.com/erbuka/pathtracing/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool           `json:"hit"`
	NodeID       int            `json:"nodeId"`
	NodeName     string         `json:"nodeName,omitempty"`
	GeometryType string         `json:"geometryType,omitempty"`
	Point        [3]float64     `json:"point"`
	Normal       [3]float64     `json:"normal"`
	UV           [2]float64     `json:"uv"`
	Distance     float64        `json:"distance"`
	Material     *MaterialInfo  `json:"material,omitempty"`
	Geometry     map[string]any `json:"geometry,omitempty"`
	Background   [3]float64     `json:"background"` // environment color along the ray on a miss
}

// MaterialInfo is the material evaluated at the hit point
type MaterialInfo struct {
	Albedo    [3]float64 `json:"albedo"`
	Emission  [3]float64 `json:"emission"`
	Roughness float64    `json:"roughness"`
	Metallic  float64    `json:"metallic"`
	Color     string     `json:"color"` // albedo as #rrggbb
	Emissive  bool       `json:"emissive"`
}

// InspectResult contains the first intersection along an inspection ray
type InspectResult struct {
	Hit    bool
	Ray    core.Ray
	Result geometry.RaycastResult
	NodeID scene.NodeID
	Node   *scene.Node
}

// inspectPixel casts a ray through the center of the given pixel and
// returns the first node hit
func inspectPixel(sc *scene.Scene, view core.ViewParameters, pixelX, pixelY int) InspectResult {
	sc.Compile()

	camera := renderer.NewCamera(sc.Camera, view)
	ray := camera.GetRay(float64(pixelX), float64(pixelY))

	result, id := sc.CastRay(ray, false)
	if !result.Hit {
		return InspectResult{Ray: ray}
	}
	return InspectResult{
		Hit:    true,
		Ray:    ray,
		Result: result,
		NodeID: id,
		Node:   sc.Node(id),
	}
}

// extractMaterialInfo evaluates every material channel at uv
func extractMaterialInfo(mat *material.Material, uv core.Vec2) *MaterialInfo {
	if mat == nil {
		return nil
	}
	s := mat.Evaluate(uv)
	return &MaterialInfo{
		Albedo:    vec3Array(s.Albedo),
		Emission:  vec3Array(s.Emission),
		Roughness: s.Roughness,
		Metallic:  s.Metallic,
		Color:     hexColor(s.Albedo),
		Emissive:  mat.IsEmissive(),
	}
}

// extractGeometryInfo describes the shape of a node
func extractGeometryInfo(shape geometry.Shape) (string, map[string]any) {
	properties := make(map[string]any)

	switch geom := shape.(type) {
	case *geometry.Sphere:
		properties["radius"] = 1.0
		return "sphere", properties

	case *geometry.Mesh:
		properties["name"] = geom.Name
		properties["triangleCount"] = geom.TriangleCount()
		bbox := geom.Bounds()
		properties["boundingBox"] = map[string]any{
			"min": vec3Array(bbox.Min),
			"max": vec3Array(bbox.Max),
		}
		return "mesh", properties

	default:
		return "unknown", properties
	}
}

// handleInspect handles ray casting inspection requests
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	params, err := s.parseSceneParams(values)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid scene parameters: " + err.Error()})
		return
	}

	pixelX, err := strconv.Atoi(values.Get("x"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid x coordinate"})
		return
	}
	pixelY, err := strconv.Atoi(values.Get("y"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid y coordinate"})
		return
	}
	if pixelX < 0 || pixelX >= params.Width || pixelY < 0 || pixelY >= params.Height {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pixel coordinates out of bounds"})
		return
	}

	sc, err := s.createScene(params.Scene, s.logger)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	view := s.defaults.View()
	view.Width, view.Height = params.Width, params.Height
	result := inspectPixel(sc, view, pixelX, pixelY)
	if !result.Hit {
		writeJSON(w, http.StatusOK, InspectResponse{
			NodeID:     -1,
			Background: vec3Array(sc.BackgroundColor(result.Ray.Direction)),
		})
		return
	}

	geometryType, geometryProps := extractGeometryInfo(result.Node.Shape)
	hit := result.Result
	writeJSON(w, http.StatusOK, InspectResponse{
		Hit:          true,
		NodeID:       int(result.NodeID),
		NodeName:     result.Node.Name,
		GeometryType: geometryType,
		Point:        vec3Array(hit.Position),
		Normal:       vec3Array(hit.Normal),
		UV:           [2]float64{hit.UV.X, hit.UV.Y},
		Distance:     hit.Position.Subtract(result.Ray.Origin).Length(),
		Material:     extractMaterialInfo(result.Node.Material, hit.UV),
		Geometry:     geometryProps,
	})
}

func vec3Array(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// hexColor clamps a linear color to [0, 1] and formats it as #rrggbb
func hexColor(c core.Vec3) string {
	clamp := func(x float64) int {
		return int(min(max(x, 0), 1)*255 + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x", clamp(c.X), clamp(c.Y), clamp(c.Z))
}
