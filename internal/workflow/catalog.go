package workflow

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sigab-api/internal/models"
)

// Catalog resolves workflow definitions by disposal reason. It is built once
// at startup, validated eagerly, and read-only afterwards, so it is safe for
// unsynchronized concurrent use.
type Catalog struct {
	byReason map[models.DisposalReason]Definition
	fallback Definition
}

// NewCatalog validates every definition (including the fallback) and builds
// the lookup table. A malformed definition is a startup-fatal condition.
func NewCatalog(defs []Definition, fallback Definition) (*Catalog, error) {
	if err := fallback.validate(); err != nil {
		return nil, fmt.Errorf("fallback definition: %w", err)
	}
	byReason := make(map[models.DisposalReason]Definition, len(defs))
	for _, def := range defs {
		if def.Reason == "" {
			return nil, fmt.Errorf("definition with empty reason")
		}
		if _, dup := byReason[def.Reason]; dup {
			return nil, fmt.Errorf("duplicate definition for reason %q", def.Reason)
		}
		if err := def.validate(); err != nil {
			return nil, err
		}
		byReason[def.Reason] = def
	}
	return &Catalog{byReason: byReason, fallback: fallback}, nil
}

// Resolve returns the definition configured for the reason. Reasons without
// an entry resolve to the generic fallback flow instead of failing, matching
// the source system's behaviour for unclassified disposals.
func (c *Catalog) Resolve(reason models.DisposalReason) Definition {
	if def, ok := c.byReason[reason]; ok {
		return def
	}
	return c.fallback
}

// Fallback returns the generic definition used for unconfigured reasons.
func (c *Catalog) Fallback() Definition {
	return c.fallback
}

// Definitions returns every configured definition sorted by reason.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, 0, len(c.byReason))
	for _, def := range c.byReason {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Reason < defs[j].Reason })
	return defs
}
