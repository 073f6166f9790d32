package constants

// Hierarchy constants
const (
	// ParentField is the reserved data field holding same-collection parent references
	ParentField = "parent"
)

// ReservedFields are parent-like data fields that are never treated as references
var ReservedFields = []string{"parent", "parents", "children"}

// Graph constants
const (
	// DefaultMaxIndirectDepth bounds indirect reference traversal when none is given
	DefaultMaxIndirectDepth = 3
)

// Menu constants
const (
	// MaxMenuResolvePasses bounds the parent re-resolution fixpoint loop
	MaxMenuResolvePasses = 5

	// DefaultMenuCollection is the content directory holding menu definitions
	DefaultMenuCollection = "menus"

	// MenuField is the frontmatter field carrying per-entry attach directives
	MenuField = "menu"
)

// Content file extensions recognised by the frontmatter walker
var ContentExtensions = []string{".md", ".mdx", ".markdown", ".yaml", ".yml", ".json"}
