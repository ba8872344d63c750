package shader

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// QuadSource is the WGSL program for the textured quad: vs_main transforms by the camera uniform at group 1,
// fs_main samples the texture and sampler at group 0.
//
//go:embed assets/quad.wgsl
var QuadSource string

// ShaderType identifies the pipeline stage of an entry point.
type ShaderType int

const (
	// ShaderTypeCompute indicates a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex indicates a @vertex entry point.
	ShaderTypeVertex

	// ShaderTypeFragment indicates a @fragment entry point.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// EntryPoint is a named shader entry point and its stage.
type EntryPoint struct {
	Name string
	Type ShaderType
}

// Binding is a resource variable bound at @group(Group) @binding(Binding).
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
}

// shader is the implementation of the Shader interface.
type shader struct {
	key         string
	source      string
	entryPoints []EntryPoint
	bindings    []Binding
}

// Shader is a WGSL program whose entry points and resource bindings have been reflected from the source.
// The source is treated as opaque otherwise; it is handed to the device unchanged.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used as the module label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoints returns every entry point declared in the source, in declaration order.
	//
	// Returns:
	//   - []EntryPoint: the entry points
	EntryPoints() []EntryPoint

	// Bindings returns every resource binding, ordered by group then binding.
	//
	// Returns:
	//   - []Binding: the resource bindings
	Bindings() []Binding

	// HasEntryPoint reports whether the source declares an entry point with the given name and stage.
	//
	// Parameters:
	//   - name: the entry point function name (e.g. "vs_main")
	//   - shaderType: the stage the entry point must have
	//
	// Returns:
	//   - bool: true if such an entry point exists
	HasEntryPoint(name string, shaderType ShaderType) bool

	// HasBinding reports whether a resource is declared at the given group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - bool: true if a resource is bound there
	HasBinding(group, binding uint32) bool

	// BindGroupVarName retrieves the variable name bound at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if nothing is bound there
	BindGroupVarName(group, binding uint32) string
}

var _ Shader = &shader{}

// NewShader parses and lowers WGSL source and records its entry points and resource bindings.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if the source does not parse or lower
func NewShader(key, source string) (Shader, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: parse: %w", key, err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return nil, fmt.Errorf("shader %s: lower: %w", key, err)
	}

	s := &shader{key: key, source: source}
	for _, ep := range module.EntryPoints {
		var t ShaderType
		switch ep.Stage {
		case ir.StageVertex:
			t = ShaderTypeVertex
		case ir.StageFragment:
			t = ShaderTypeFragment
		case ir.StageCompute:
			t = ShaderTypeCompute
		default:
			continue
		}
		s.entryPoints = append(s.entryPoints, EntryPoint{Name: ep.Name, Type: t})
	}
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		s.bindings = append(s.bindings, Binding{
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Name:    gv.Name,
		})
	}
	sort.Slice(s.bindings, func(i, j int) bool {
		if s.bindings[i].Group != s.bindings[j].Group {
			return s.bindings[i].Group < s.bindings[j].Group
		}
		return s.bindings[i].Binding < s.bindings[j].Binding
	})
	return s, nil
}

// NewQuadShader reflects QuadSource.
//
// Returns:
//   - Shader: the quad shader
//   - error: an error if the embedded source fails to parse
func NewQuadShader() (Shader, error) {
	return NewShader("quad", QuadSource)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoints() []EntryPoint {
	return s.entryPoints
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) HasEntryPoint(name string, shaderType ShaderType) bool {
	for _, ep := range s.entryPoints {
		if ep.Name == name && ep.Type == shaderType {
			return true
		}
	}
	return false
}

func (s *shader) HasBinding(group, binding uint32) bool {
	return s.BindGroupVarName(group, binding) != ""
}

func (s *shader) BindGroupVarName(group, binding uint32) string {
	for _, b := range s.bindings {
		if b.Group == group && b.Binding == binding {
			return b.Name
		}
	}
	return ""
}
