package prompt

import (
	"fmt"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/health-advisor-server/internal/domain"
)

const blockCacheSize = 16

// ComposedPrompt is the complete text submitted to the inference backend.
type ComposedPrompt struct {
	Text          string
	SchemaVersion string
	// Stop holds the envelope's stop sequences, to be merged with the
	// configured ones.
	Stop []string
}

func (p ComposedPrompt) String() string {
	return p.Text
}

// Composer combines the static instruction block with normalized user data
// inside one envelope. Rendered system blocks are cached per schema.
type Composer struct {
	envelope      Envelope
	schemaDir     string
	defaultSchema *ReportSchema

	mu      sync.Mutex
	schemas map[string]*ReportSchema
	blocks  *lru.Cache[string, string]
}

// NewComposer loads the configured schema and envelope. An unknown schema
// version or envelope family is reported here, never at compose time.
func NewComposer(cfg domain.PromptConfig) (*Composer, error) {
	envelope, err := NewEnvelope(cfg.Envelope, cfg.OmitBOS)
	if err != nil {
		return nil, err
	}

	schema, err := LoadSchema(cfg.SchemaVersion, cfg.SchemaDir)
	if err != nil {
		return nil, err
	}

	blocks, err := lru.New[string, string](blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create system block cache: %w", err)
	}

	return &Composer{
		envelope:      envelope,
		schemaDir:     cfg.SchemaDir,
		defaultSchema: schema,
		schemas:       map[string]*ReportSchema{schema.Version: schema},
		blocks:        blocks,
	}, nil
}

// Envelope returns the envelope in use.
func (c *Composer) Envelope() Envelope {
	return c.envelope
}

// DefaultSchema returns the schema selected by configuration.
func (c *Composer) DefaultSchema() *ReportSchema {
	return c.defaultSchema
}

// Schema returns the schema for version, loading it on first use. An empty
// version selects the default schema.
func (c *Composer) Schema(version string) (*ReportSchema, error) {
	if version == "" {
		return c.defaultSchema, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.schemas[version]; ok {
		return s, nil
	}
	s, err := LoadSchema(version, c.schemaDir)
	if err != nil {
		return nil, err
	}
	c.schemas[version] = s
	return s, nil
}

// Compose builds the prompt for normalized input with the default schema.
func (c *Composer) Compose(normalized string) ComposedPrompt {
	return c.compose(c.defaultSchema, normalized)
}

// ComposeWith builds the prompt using the named schema version.
func (c *Composer) ComposeWith(version, normalized string) (ComposedPrompt, error) {
	schema, err := c.Schema(version)
	if err != nil {
		return ComposedPrompt{}, err
	}
	return c.compose(schema, normalized), nil
}

func (c *Composer) compose(schema *ReportSchema, normalized string) ComposedPrompt {
	user := schema.UserBlock(c.envelope.Scrub(normalized))
	return ComposedPrompt{
		Text:          c.systemPrefix(schema) + c.envelope.WrapUser(user),
		SchemaVersion: schema.Version,
		Stop:          c.envelope.StopSequences(),
	}
}

// systemPrefix returns the cached envelope-wrapped system block.
func (c *Composer) systemPrefix(schema *ReportSchema) string {
	key := schema.Version + "|" + c.envelope.Family + "|" + strconv.FormatBool(c.envelope.OmitBOS)
	if block, ok := c.blocks.Get(key); ok {
		return block
	}
	block := c.envelope.WrapSystem(schema.SystemBlock())
	c.blocks.Add(key, block)
	return block
}
