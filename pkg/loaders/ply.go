package loaders

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/geometry"
)

// ErrInvalidPLY is returned for malformed PLY files
var ErrInvalidPLY = errors.New("loaders: invalid PLY file")

// PLYHeader represents the parsed header information from a PLY file
type PLYHeader struct {
	Format   string // "binary_little_endian", "binary_big_endian", or "ascii"
	Version  string // Usually "1.0"
	Elements []PLYElement
}

// PLYElement is one element block declared in the header
type PLYElement struct {
	Name  string
	Count int
	Props []PLYProperty
}

// PLYProperty represents a property definition in the PLY header
type PLYProperty struct {
	Name     string
	Type     string
	IsList   bool
	ListType string // For list properties, the type of the count
	DataType string // For list properties, the type of the data
}

// PLYData contains the vertex and face data loaded from a PLY file
type PLYData struct {
	Vertices  []core.Vec3
	Normals   []core.Vec3 // empty if not present
	TexCoords []core.Vec2 // empty if not present
	Faces     [][]int     // vertex indices per polygon
}

// LoadPLY loads a PLY file as a compiled mesh named after the file
func LoadPLY(filename string, logger *zap.Logger) (*geometry.Mesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startTime := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer file.Close()

	data, err := ParsePLY(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filename, err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	mesh := data.ToMesh(name)

	logger.Debug("loaded PLY mesh",
		zap.String("file", filename),
		zap.Int("vertices", len(data.Vertices)),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Duration("elapsed", time.Since(startTime)))

	return mesh, nil
}

// ParsePLY reads a PLY stream in any of the three standard encodings
func ParsePLY(r *bufio.Reader) (*PLYData, error) {
	header, err := parsePLYHeader(r)
	if err != nil {
		return nil, err
	}

	var values plyValueReader
	switch header.Format {
	case "ascii":
		values = &asciiValueReader{r: r}
	case "binary_little_endian":
		values = &binaryValueReader{r: r, order: binary.LittleEndian}
	case "binary_big_endian":
		values = &binaryValueReader{r: r, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidPLY, header.Format)
	}

	data := &PLYData{}
	for _, element := range header.Elements {
		switch element.Name {
		case "vertex":
			err = readPLYVertices(values, element, data)
		case "face":
			err = readPLYFaces(values, element, data)
		default:
			err = skipPLYElement(values, element)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: element %s: %v", ErrInvalidPLY, element.Name, err)
		}
	}

	for i, face := range data.Faces {
		for _, idx := range face {
			if idx < 0 || idx >= len(data.Vertices) {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrInvalidPLY, i, idx, len(data.Vertices))
			}
		}
	}
	return data, nil
}

// ToMesh fan-triangulates every polygon into a compiled mesh
func (d *PLYData) ToMesh(name string) *geometry.Mesh {
	vertex := func(i int) geometry.Vertex {
		v := geometry.Vertex{Position: d.Vertices[i]}
		if len(d.Normals) == len(d.Vertices) {
			v.Normal = d.Normals[i]
		}
		if len(d.TexCoords) == len(d.Vertices) {
			v.UV = d.TexCoords[i]
		}
		return v
	}

	mesh := geometry.NewMesh(name)
	for _, face := range d.Faces {
		for k := 1; k+1 < len(face); k++ {
			mesh.AddTriangle(geometry.NewTriangle(vertex(face[0]), vertex(face[k]), vertex(face[k+1])))
		}
	}
	mesh.Compile()
	return mesh
}

// parsePLYHeader parses the header, leaving r at the first data byte
func parsePLYHeader(r *bufio.Reader) (*PLYHeader, error) {
	header := &PLYHeader{}

	magic, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("%w: missing ply signature", ErrInvalidPLY)
	}

	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidPLY)
		}
		line := strings.TrimSpace(raw)
		if line == "end_header" {
			break
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "format":
			if len(parts) >= 3 {
				header.Format = parts[1]
				header.Version = parts[2]
			}
		case "comment", "obj_info":
			// Ignore comments
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrInvalidPLY, line)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: invalid element count: %s", ErrInvalidPLY, parts[2])
			}
			header.Elements = append(header.Elements, PLYElement{Name: parts[1], Count: count})
		case "property":
			if len(header.Elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrInvalidPLY)
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, err
			}
			last := &header.Elements[len(header.Elements)-1]
			last.Props = append(last.Props, prop)
		}
	}

	return header, nil
}

// parsePLYProperty parses a property line from the PLY header
func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("%w: invalid property definition", ErrInvalidPLY)
	}

	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("%w: invalid list property definition", ErrInvalidPLY)
		}
		return PLYProperty{IsList: true, ListType: parts[1], DataType: parts[2], Name: parts[3]}, nil
	}
	return PLYProperty{Type: parts[0], Name: parts[1]}, nil
}

func readPLYVertices(values plyValueReader, element PLYElement, data *PLYData) error {
	index := map[string]int{}
	for i, prop := range element.Props {
		index[prop.Name] = i
	}
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := index[n]; !ok {
				return false
			}
		}
		return true
	}
	uName, vName := "u", "v"
	if !has(uName, vName) && has("s", "t") {
		uName, vName = "s", "t"
	}
	hasNormals := has("nx", "ny", "nz")
	hasUV := has(uName, vName)

	row := make([]float64, len(element.Props))
	for i := 0; i < element.Count; i++ {
		for p, prop := range element.Props {
			if prop.IsList {
				if err := skipPLYList(values, prop); err != nil {
					return err
				}
				continue
			}
			v, err := values.read(prop.Type)
			if err != nil {
				return fmt.Errorf("vertex %d: %v", i, err)
			}
			row[p] = v
		}

		get := func(name string) float64 {
			if p, ok := index[name]; ok {
				return row[p]
			}
			return 0
		}
		data.Vertices = append(data.Vertices, core.NewVec3(get("x"), get("y"), get("z")))
		if hasNormals {
			data.Normals = append(data.Normals, core.NewVec3(get("nx"), get("ny"), get("nz")))
		}
		if hasUV {
			data.TexCoords = append(data.TexCoords, core.NewVec2(get(uName), get(vName)))
		}
	}
	return nil
}

func readPLYFaces(values plyValueReader, element PLYElement, data *PLYData) error {
	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Props {
			if !prop.IsList || (prop.Name != "vertex_indices" && prop.Name != "vertex_index") {
				if err := skipPLYProperty(values, prop); err != nil {
					return err
				}
				continue
			}

			n, err := values.read(prop.ListType)
			if err != nil {
				return fmt.Errorf("face %d: %v", i, err)
			}
			face := make([]int, int(n))
			for k := range face {
				idx, err := values.read(prop.DataType)
				if err != nil {
					return fmt.Errorf("face %d: %v", i, err)
				}
				face[k] = int(idx)
			}
			data.Faces = append(data.Faces, face)
		}
	}
	return nil
}

func skipPLYElement(values plyValueReader, element PLYElement) error {
	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Props {
			if err := skipPLYProperty(values, prop); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipPLYProperty(values plyValueReader, prop PLYProperty) error {
	if prop.IsList {
		return skipPLYList(values, prop)
	}
	_, err := values.read(prop.Type)
	return err
}

func skipPLYList(values plyValueReader, prop PLYProperty) error {
	n, err := values.read(prop.ListType)
	if err != nil {
		return err
	}
	for k := 0; k < int(n); k++ {
		if _, err := values.read(prop.DataType); err != nil {
			return err
		}
	}
	return nil
}

// plyValueReader reads one scalar of a PLY type as float64
type plyValueReader interface {
	read(dataType string) (float64, error)
}

type asciiValueReader struct {
	r *bufio.Reader
}

func (a *asciiValueReader) read(dataType string) (float64, error) {
	if getTypeSize(dataType) == 0 {
		return 0, fmt.Errorf("unsupported data type: %s", dataType)
	}

	var token []byte
	for {
		b, err := a.r.ReadByte()
		if err != nil {
			if err == io.EOF && len(token) > 0 {
				break
			}
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			if len(token) > 0 {
				break
			}
			continue
		}
		token = append(token, b)
	}
	return strconv.ParseFloat(string(token), 64)
}

type binaryValueReader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *binaryValueReader) read(dataType string) (float64, error) {
	size := getTypeSize(dataType)
	if size == 0 {
		return 0, fmt.Errorf("unsupported data type: %s", dataType)
	}
	buf := b.buf[:size]
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return 0, err
	}

	switch dataType {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(buf))), nil
	default: // double, float64
		return math.Float64frombits(b.order.Uint64(buf)), nil
	}
}

// getTypeSize returns the size in bytes of a PLY data type, 0 if unknown
func getTypeSize(dataType string) int {
	switch dataType {
	case "float", "float32", "int", "int32", "uint", "uint32":
		return 4
	case "double", "float64":
		return 8
	case "short", "int16", "ushort", "uint16":
		return 2
	case "char", "int8", "uchar", "uint8":
		return 1
	default:
		return 0
	}
}
