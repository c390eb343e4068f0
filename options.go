package fudge

// JSONOptions configures the JSON reader/writer (spec.md §6). A nil
// *string field name means "use the default name"; a pointer to the empty
// string means "suppress this field" (spec.md: "strings or null to
// suppress").
type JSONOptions struct {
	ProcessingDirectivesField *string
	SchemaVersionField        *string
	TaxonomyField             *string
	// PreferFieldNames: prefer names when both name and ordinal are
	// present, else emit whichever is present (default true; see
	// spec.md §9 open question).
	PreferFieldNames bool
	// NumbersAreOrdinals: a JSON name matching ^-?[0-9]+$ is interpreted
	// as an ordinal rather than a literal name (default true).
	NumbersAreOrdinals bool
}

const (
	defaultProcessingDirectivesField = "fudgeProcessingDirectives"
	defaultSchemaVersionField        = "fudgeSchemaVersion"
	defaultTaxonomyField             = "fudgeTaxonomy"
)

// DefaultJSONOptions returns the option set spec.md §6 documents as the
// defaults.
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{PreferFieldNames: true, NumbersAreOrdinals: true}
}

func (o JSONOptions) directivesField() (name string, suppressed bool) {
	return resolveMetaField(o.ProcessingDirectivesField, defaultProcessingDirectivesField)
}

func (o JSONOptions) schemaVersionField() (name string, suppressed bool) {
	return resolveMetaField(o.SchemaVersionField, defaultSchemaVersionField)
}

func (o JSONOptions) taxonomyField() (name string, suppressed bool) {
	return resolveMetaField(o.TaxonomyField, defaultTaxonomyField)
}

func resolveMetaField(p *string, def string) (string, bool) {
	if p == nil {
		return def, false
	}
	if *p == "" {
		return "", true
	}
	return *p, false
}

// SuppressField returns the sentinel *string that suppresses a reserved
// metadata field when passed to JSONOptions.
func SuppressField() *string {
	s := ""
	return &s
}

// NamedMetaField returns a *string naming a reserved metadata field
// explicitly.
func NamedMetaField(name string) *string { return &name }
