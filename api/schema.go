package api

// Manifest is the root document that drives one generation run.
// It lists the domain entities and where to find more of them.
type Manifest struct {
	// Version of the dalgen manifest format.
	Version string `json:"version" mapstructure:"version"`
	// Module is the Go module path of the generated project.
	Module string `json:"module" mapstructure:"module"`
	// Entities declared inline.
	Entities []Entity `json:"entities,omitempty" mapstructure:"entities"`
	// Imports pull additional entities out of JSON documents.
	Imports []Import `json:"imports,omitempty" mapstructure:"imports"`
}

// Entity describes one domain type and the artifacts it participates in.
type Entity struct {
	// Name of the Go type, e.g. "Order". Must be an identifier.
	Name string `json:"name" mapstructure:"name"`
	// Options selects the generated artifacts.
	Options Options `json:"options" mapstructure:"options"`
}

// Options are the per-entity generation switches.
type Options struct {
	Repository    bool `json:"repository" mapstructure:"repository"`       // repository interface
	UnitOfWork    bool `json:"unit_of_work" mapstructure:"unit_of_work"`   // member of the unit of work
	Configuration bool `json:"configuration" mapstructure:"configuration"` // mapping configuration stub
}

// Import selects entity records from a JSON file.
type Import struct {
	// File is relative to the project root.
	File string `json:"file" mapstructure:"file"`
	// Selector is a JSONPath expression matching entity objects (e.g. "$.entities[*]").
	Selector string `json:"selector" mapstructure:"selector"`
}

// Names returns the entity names in manifest order.
func Names(entities []Entity) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names
}
