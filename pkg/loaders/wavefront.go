package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
)

// ErrInvalidWavefront is returned for malformed OBJ files
var ErrInvalidWavefront = errors.New("loaders: invalid Wavefront OBJ file")

// DefaultMeshName names the triangles that precede any o or g statement
const DefaultMeshName = "default"

// LoadWavefront loads an OBJ file into compiled meshes keyed by object name
func LoadWavefront(filename string, logger *zap.Logger) (map[string]*geometry.Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer file.Close()

	meshes, err := ParseWavefront(file, logger)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filename, err)
	}
	return meshes, nil
}

// objParser accumulates the attribute pools and meshes of one OBJ stream
type objParser struct {
	logger    *zap.Logger
	positions []core.Vec3
	normals   []core.Vec3
	uvs       []core.Vec2
	meshes    map[string]*geometry.Mesh
	current   *geometry.Mesh
}

// ParseWavefront reads v, vn, vt, o, g and f statements. Polygons are fan
// triangulated and negative indices count back from the latest vertex.
// Objects without triangles are left out.
func ParseWavefront(r io.Reader, logger *zap.Logger) (map[string]*geometry.Mesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &objParser{logger: logger, meshes: map[string]*geometry.Mesh{}}
	p.selectMesh(DefaultMeshName)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := p.parseLine(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidWavefront, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for name, mesh := range p.meshes {
		if mesh.TriangleCount() == 0 {
			delete(p.meshes, name)
			continue
		}
		mesh.Compile()
		logger.Debug("loaded mesh", zap.String("name", name), zap.Int("triangles", mesh.TriangleCount()))
	}
	return p.meshes, nil
}

func (p *objParser) selectMesh(name string) {
	mesh, ok := p.meshes[name]
	if !ok {
		mesh = geometry.NewMesh(name)
		p.meshes[name] = mesh
	}
	p.current = mesh
}

func (p *objParser) parseLine(line string) error {
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "#") {
		p.logger.Debug("obj comment", zap.String("text", strings.TrimSpace(line[1:])))
		return nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, core.NewVec3(v[0], v[1], v[2]))
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, core.NewVec3(v[0], v[1], v[2]))
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.uvs = append(p.uvs, core.NewVec2(v[0], v[1]))
	case "o", "g":
		name := DefaultMeshName
		if len(fields) > 1 {
			name = strings.Join(fields[1:], " ")
		}
		p.selectMesh(name)
	case "f":
		return p.parseFace(fields[1:])
	default:
		p.logger.Debug("ignoring obj statement", zap.String("statement", fields[0]))
	}
	return nil
}

func (p *objParser) parseFace(corners []string) error {
	if len(corners) < 3 {
		return fmt.Errorf("face needs at least 3 vertices, got %d", len(corners))
	}

	vertices := make([]geometry.Vertex, len(corners))
	for i, corner := range corners {
		v, err := p.parseCorner(corner)
		if err != nil {
			return err
		}
		vertices[i] = v
	}

	for k := 1; k+1 < len(vertices); k++ {
		p.current.AddTriangle(geometry.NewTriangle(vertices[0], vertices[k], vertices[k+1]))
	}
	return nil
}

// parseCorner resolves a face corner of the form v, v/t, v//n or v/t/n
func (p *objParser) parseCorner(corner string) (geometry.Vertex, error) {
	parts := strings.Split(corner, "/")
	if len(parts) > 3 {
		return geometry.Vertex{}, fmt.Errorf("bad face corner %q", corner)
	}

	var vertex geometry.Vertex

	pi, err := resolveIndex(parts[0], len(p.positions))
	if err != nil {
		return vertex, fmt.Errorf("position of %q: %v", corner, err)
	}
	vertex.Position = p.positions[pi]

	if len(parts) > 1 && parts[1] != "" {
		ti, err := resolveIndex(parts[1], len(p.uvs))
		if err != nil {
			return vertex, fmt.Errorf("texture coordinate of %q: %v", corner, err)
		}
		vertex.UV = p.uvs[ti]
	}

	if len(parts) > 2 && parts[2] != "" {
		ni, err := resolveIndex(parts[2], len(p.normals))
		if err != nil {
			return vertex, fmt.Errorf("normal of %q: %v", corner, err)
		}
		vertex.Normal = p.normals[ni]
	}

	return vertex, nil
}

// resolveIndex converts a 1-based or negative OBJ index into a slice index
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, fmt.Errorf("index %d out of range (%d defined)", i, count)
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
