// Package assets is the shader-source collaborator: it loads WGSL from
// disk, extracts the metadata the renderer validates its binding layouts
// against, compiles to SPIR-V for backends that consume it, and watches
// the source file for changes.
package assets

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/naga"

	"github.com/heliosrt/helios/engine/core"
)

type ShaderStage int

const (
	StageCompute ShaderStage = iota
	StageVertex
	StageFragment
)

// EntryPoint is one shader entry function. Workgroup is meaningful for
// compute stages only; unspecified dimensions default to 1.
type EntryPoint struct {
	Name      string
	Stage     ShaderStage
	Workgroup [3]uint32
}

// BindingClass mirrors the WGSL resource classes the renderer binds.
type BindingClass int

const (
	ClassUniform BindingClass = iota
	ClassAccelerationStructure
	ClassStorageTexture
	ClassSampledTexture
)

// BindingDecl is one `@group(g) @binding(b) var ...` declaration.
type BindingDecl struct {
	Group int
	Index uint32
	Name  string
	Class BindingClass
}

// ShaderSource is a loaded shader module: raw WGSL plus the scanned
// interface the renderer checks its pipeline layouts against.
type ShaderSource struct {
	Path     string
	Source   string
	Entries  []EntryPoint
	Bindings []BindingDecl
}

var entryRe = regexp.MustCompile(
	`@(compute|vertex|fragment)(?:\s+@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?\))?\s*fn\s+([A-Za-z_][A-Za-z0-9_]*)`)

var bindingRe = regexp.MustCompile(
	`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<([a-z_,\s]+)>)?\s+([A-Za-z_][A-Za-z0-9_]*)\s*:\s*([A-Za-z_][A-Za-z0-9_]*)`)

// ScanShader extracts entry points and resource bindings from WGSL
// source. It is a surface scan, not a compile: naga still has the final
// word on whether the source is valid.
func ScanShader(name, source string) (*ShaderSource, error) {
	s := &ShaderSource{Path: name, Source: source}

	for _, m := range entryRe.FindAllStringSubmatch(source, -1) {
		ep := EntryPoint{Name: m[5], Workgroup: [3]uint32{1, 1, 1}}
		switch m[1] {
		case "compute":
			ep.Stage = StageCompute
		case "vertex":
			ep.Stage = StageVertex
		case "fragment":
			ep.Stage = StageFragment
		}
		for i, dim := range []string{m[2], m[3], m[4]} {
			if dim != "" {
				n, err := strconv.ParseUint(dim, 10, 32)
				if err != nil {
					return nil, fmt.Errorf("shader %s: bad workgroup size %q: %w", name, dim, err)
				}
				ep.Workgroup[i] = uint32(n)
			}
		}
		s.Entries = append(s.Entries, ep)
	}
	if len(s.Entries) == 0 {
		return nil, fmt.Errorf("shader %s declares no entry points", name)
	}

	for _, m := range bindingRe.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(m[1])
		index, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("shader %s: bad binding index %q: %w", name, m[2], err)
		}
		decl := BindingDecl{Group: group, Index: uint32(index), Name: m[4]}
		space, typeName := m[3], m[5]
		switch {
		case strings.Contains(space, "uniform"):
			decl.Class = ClassUniform
		case typeName == "acceleration_structure":
			decl.Class = ClassAccelerationStructure
		case strings.HasPrefix(typeName, "texture_storage"):
			decl.Class = ClassStorageTexture
		case strings.HasPrefix(typeName, "texture_"):
			decl.Class = ClassSampledTexture
		default:
			return nil, fmt.Errorf("shader %s: binding %q has unsupported type %q", name, m[4], typeName)
		}
		s.Bindings = append(s.Bindings, decl)
	}

	return s, nil
}

// LoadShader reads and scans one WGSL file.
func LoadShader(path string) (*ShaderSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read shader %s: %w", path, err)
	}
	s, err := ScanShader(path, string(data))
	if err != nil {
		return nil, err
	}
	core.LogDebug("loaded shader %s: %d entry points, %d bindings",
		path, len(s.Entries), len(s.Bindings))
	return s, nil
}

// Entry returns the named entry point.
func (s *ShaderSource) Entry(name string) (EntryPoint, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// GroupBindings returns the declarations of one bind group, in
// declaration order.
func (s *ShaderSource) GroupBindings(group int) []BindingDecl {
	var out []BindingDecl
	for _, b := range s.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	return out
}

// CompileToSPIRV compiles WGSL to SPIR-V words for backends that ingest
// SPIR-V modules.
func CompileToSPIRV(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
