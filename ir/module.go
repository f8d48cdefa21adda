package ir

// MemberKind tags what a Module's member slot holds.
type MemberKind int

const (
	MemberFunction MemberKind = iota
	MemberImport
	MemberVariable
	MemberRecordTemplate
)

// Member is one entry of a Module's symbol table: a function, an import
// reference resolved against the host's module registry at load time, a
// module-level constant, or a record template. Bytecode emission's link
// table (spec.md §4.4) resolves LoadConst/LoadModule/MakeRecord operands
// against a Member's MemberID.
type Member struct {
	ID   MemberID
	Kind MemberKind
	Name string

	Function       *Function       // set when Kind == MemberFunction
	ImportName     string          // set when Kind == MemberImport
	Constant       *Constant       // set when Kind == MemberVariable
	RecordTemplate *RecordTemplate // set when Kind == MemberRecordTemplate
}

// RecordTemplate is the closed field-name set shared by every record
// literal written with the same fields; MakeRecord instructions reference
// one by RecordID rather than repeating field names at every call site.
type RecordTemplate struct {
	ID     RecordID
	Fields []string
}

// Module is one compilation unit: a name plus an ordered member table.
// The MemberFunction named "$init" is the module's initializer, wrapped
// in a coroutine and run by the loader before any other member is
// observable (spec.md §4.9); every module has exactly one, even if it
// has no top-level variables to initialize.
type Module struct {
	Name    string
	Members []*Member

	Valid bool
}

// NewModule returns an empty, valid module.
func NewModule(name string) *Module {
	return &Module{Name: name, Valid: true}
}

// AddMember appends a member, assigning it the next MemberID.
func (m *Module) AddMember(kind MemberKind, name string) *Member {
	mem := &Member{ID: MemberID(len(m.Members) + 1), Kind: kind, Name: name}
	m.Members = append(m.Members, mem)
	return mem
}

// Member returns the member with the given id.
func (m *Module) Member(id MemberID) *Member { return m.Members[id-1] }

// FindMember returns the member named name, if any.
func (m *Module) FindMember(name string) (*Member, bool) {
	for _, mem := range m.Members {
		if mem.Name == name {
			return mem, true
		}
	}
	return nil, false
}
