package oxs

// InterfaceDef records a declared interface's member-function signatures.
// Per spec.md §9, interfaces are recorded but never lowered to dispatch.
type InterfaceDef struct {
	Name      string
	Functions map[string]FunctionDef
}

func NewInterfaceDef(name string) *InterfaceDef {
	return &InterfaceDef{Name: name, Functions: make(map[string]FunctionDef)}
}

func (i *InterfaceDef) AddFunction(f FunctionDef) { i.Functions[f.Name] = f }

func (i *InterfaceDef) GetFunction(name string) (FunctionDef, bool) {
	f, ok := i.Functions[name]
	return f, ok
}

// FunctionDef is a function's compile-time signature, including
// per-argument frame offsets and sizes computed right-to-left at
// declaration time (§4.3.1) for native and foreign functions alike.
type FunctionDef struct {
	Name       string
	UID        uint64
	RetType    Type
	Arguments  []Arg
	Foreign    bool
	ArgOffsets []int64
	ArgSizes   []uint32
}

type memberEntry struct {
	Name string
	Type Type
}

// ContainerDef is a record type: an ordered member list (declaration order
// is the layout, §3.1/I2), a member-function table, and the set of
// interfaces it declares conformance to.
type ContainerDef struct {
	Name            string
	CanonicalName   string
	members         []memberEntry
	memberIndex     map[string]int
	MemberFunctions map[string]FunctionDef
	interfaces      map[string]struct{}
}

func NewContainerDef(name, canonicalName string) *ContainerDef {
	return &ContainerDef{
		Name:            name,
		CanonicalName:   canonicalName,
		memberIndex:     make(map[string]int),
		MemberFunctions: make(map[string]FunctionDef),
		interfaces:      make(map[string]struct{}),
	}
}

func (c *ContainerDef) AddMemberVariable(name string, t Type) error {
	if _, ok := c.memberIndex[name]; ok {
		return &CompileError{Kind: ErrDuplicateMember, Detail: name}
	}
	c.memberIndex[name] = len(c.members)
	c.members = append(c.members, memberEntry{Name: name, Type: t})
	return nil
}

func (c *ContainerDef) AddMemberFunction(f FunctionDef) error {
	if _, ok := c.MemberFunctions[f.Name]; ok {
		return &CompileError{Kind: ErrDuplicateFunction, Detail: f.Name}
	}
	c.MemberFunctions[f.Name] = f
	return nil
}

func (c *ContainerDef) Implements(name string)      { c.interfaces[name] = struct{}{} }
func (c *ContainerDef) DoesImplement(name string) bool {
	_, ok := c.interfaces[name]
	return ok
}

func (c *ContainerDef) GetMemberIndex(name string) (int, bool) {
	i, ok := c.memberIndex[name]
	return i, ok
}

func (c *ContainerDef) GetMemberType(name string) (Type, bool) {
	i, ok := c.memberIndex[name]
	if !ok {
		return Type{}, false
	}
	return c.members[i].Type, true
}

func (c *ContainerDef) GetMemberFunction(name string) (FunctionDef, bool) {
	f, ok := c.MemberFunctions[name]
	return f, ok
}

// MemberNames returns members in declaration order.
func (c *ContainerDef) MemberNames() []string {
	names := make([]string, len(c.members))
	for i, m := range c.members {
		names[i] = m.Name
	}
	return names
}

// GetMemberOffset returns the prefix sum of sizes of members declared
// before name (I2: offsets are packed, no padding).
func (c *ContainerDef) GetMemberOffset(sizeOf func(Type) (uint32, error), name string) (uint32, error) {
	i, ok := c.memberIndex[name]
	if !ok {
		return 0, &CompileError{Kind: ErrUnknownMember, Detail: name}
	}
	var off uint32
	for _, m := range c.members[:i] {
		sz, err := sizeOf(m.Type)
		if err != nil {
			return 0, err
		}
		off += sz
	}
	return off, nil
}

// GetSize returns the total packed size of the container.
func (c *ContainerDef) GetSize(sizeOf func(Type) (uint32, error)) (uint32, error) {
	var total uint32
	for _, m := range c.members {
		sz, err := sizeOf(m.Type)
		if err != nil {
			return 0, err
		}
		total += sz
	}
	return total, nil
}

func (c *ContainerDef) MergeDecl(decl *ContainerDecl) error {
	for _, f := range decl.Fields {
		if err := c.AddMemberVariable(f.Name, f.Type); err != nil {
			return err
		}
	}
	return nil
}

// ModuleContext is a node in the module tree rooted at "root". Canonical
// names are built by walking Parent links (§3.3).
type ModuleContext struct {
	Name       string
	Parent     *ModuleContext
	Modules    map[string]*ModuleContext
	Functions  map[string]FunctionDef
	Containers map[string]*ContainerDef
	Interfaces map[string]*InterfaceDef
	Imports    map[string]string
}

func NewModuleContext(name string, parent *ModuleContext) *ModuleContext {
	return &ModuleContext{
		Name:       name,
		Parent:     parent,
		Modules:    make(map[string]*ModuleContext),
		Functions:  make(map[string]FunctionDef),
		Containers: make(map[string]*ContainerDef),
		Interfaces: make(map[string]*InterfaceDef),
		Imports:    make(map[string]string),
	}
}

func (m *ModuleContext) CanonicalName() string {
	if m.Parent == nil {
		return m.Name
	}
	parent := m.Parent.CanonicalName()
	if parent == "" {
		return m.Name
	}
	return parent + "::" + m.Name
}

func (m *ModuleContext) AddFunction(f FunctionDef) error {
	if _, ok := m.Functions[f.Name]; ok {
		return &CompileError{Kind: ErrDuplicateFunction, Detail: f.Name}
	}
	m.Functions[f.Name] = f
	return nil
}

func (m *ModuleContext) AddModule(name string) (*ModuleContext, error) {
	if _, ok := m.Modules[name]; ok {
		return nil, &CompileError{Kind: ErrDuplicateModule, Detail: name}
	}
	child := NewModuleContext(name, m)
	m.Modules[name] = child
	return child, nil
}

func (m *ModuleContext) AddContainer(c *ContainerDef) error {
	if _, ok := m.Containers[c.Name]; ok {
		return &CompileError{Kind: ErrAlreadyContainsContainer, Detail: c.Name}
	}
	m.Containers[c.Name] = c
	return nil
}

func (m *ModuleContext) AddInterface(i *InterfaceDef) error {
	if _, ok := m.Interfaces[i.Name]; ok {
		return &CompileError{Kind: ErrDuplicateFunction, Detail: i.Name}
	}
	m.Interfaces[i.Name] = i
	return nil
}

func (m *ModuleContext) AddImport(alias, path string) error {
	if _, ok := m.Imports[alias]; ok {
		return &CompileError{Kind: ErrDuplicateImport, Detail: alias}
	}
	m.Imports[alias] = path
	return nil
}

func (m *ModuleContext) GetContainer(name string) (*ContainerDef, bool) {
	c, ok := m.Containers[name]
	return c, ok
}

func (m *ModuleContext) GetFunction(name string) (FunctionDef, bool) {
	f, ok := m.Functions[name]
	return f, ok
}

func (m *ModuleContext) GetModule(name string) (*ModuleContext, bool) {
	c, ok := m.Modules[name]
	return c, ok
}

func (m *ModuleContext) GetInterface(name string) (*InterfaceDef, bool) {
	i, ok := m.Interfaces[name]
	return i, ok
}
