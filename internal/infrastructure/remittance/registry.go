package remitfile

import (
	app "github.com/remitflow/backend/internal/application/reconciliation"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
)

// Registry maps file types to their parsers
type Registry struct {
	parsers map[domain.FileType]app.RemittanceParser
}

// NewRegistry creates a registry with the given parsers
func NewRegistry(parsers ...app.RemittanceParser) *Registry {
	r := &Registry{parsers: make(map[domain.FileType]app.RemittanceParser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.FileType()] = p
	}
	return r
}

// Register adds or replaces the parser for its file type
func (r *Registry) Register(p app.RemittanceParser) {
	r.parsers[p.FileType()] = p
}

// ParserFor resolves the parser for a file type
func (r *Registry) ParserFor(fileType domain.FileType) (app.RemittanceParser, bool) {
	p, ok := r.parsers[fileType]
	return p, ok
}

// CustomParser builds a parser for a caller-supplied field mapping. Custom
// parsers are configured per import request, never registered.
func (r *Registry) CustomParser(mapping *app.FieldMapping) (app.RemittanceParser, error) {
	return NewMappingParser(mapping)
}

// DefaultRegistry returns a registry with the built-in EDI 835 and CSV parsers
func DefaultRegistry() *Registry {
	return NewRegistry(NewEDI835Parser(), NewCSVParser())
}

// Ensure Registry implements the interface
var _ app.ParserRegistry = (*Registry)(nil)
