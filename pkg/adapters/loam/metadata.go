package loam

import "github.com/aretw0/contract/pkg/manifest"

// ContractMetadata represents the frontmatter of a contract document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
//
// A document whose frontmatter only declares types contributes aliases and
// no contract.
type ContractMetadata struct {
	// Name defaults to the document id without its extension.
	Name        string                `json:"name" mapstructure:"name"`
	Description string                `json:"description" mapstructure:"description"`
	Params      []manifest.ParamEntry `json:"params" mapstructure:"params"`
	Returns     string                `json:"returns" mapstructure:"returns"`
	Types       map[string]string     `json:"types" mapstructure:"types"`
}

func (m ContractMetadata) typesOnly() bool {
	return m.Name == "" && len(m.Params) == 0 && m.Returns == "" && len(m.Types) > 0
}
