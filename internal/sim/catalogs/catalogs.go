package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"factorysim.ai/internal/sim/model"
)

var (
	ErrUnknownItem     = errors.New("unknown item kind")
	ErrUnknownFacility = errors.New("unknown facility kind")
	ErrUnknownAgent    = errors.New("unknown agent kind")
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Catalogs struct {
	Items      ItemCatalog
	Facilities FacilityCatalog
	Agents     AgentCatalog
}

type ItemCatalog struct {
	Palette []string
	Defs    map[string]ItemDef
	Digest  string
}

// ItemDef is the item descriptor. Display and economic fields are carried through untouched.
type ItemDef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
	Mesh  string `json:"mesh,omitempty"`
	// PoolWarm is how many instances to pre-build for this kind.
	PoolWarm int `json:"pool_warm,omitempty"`
}

func (d ItemDef) Kind() model.ItemKind { return model.ItemKind(d.ID) }

type FacilityCatalog struct {
	ByID   map[string]FacilityDef
	Digest string
}

// FacilityDef is the immutable origin data of a facility kind.
type FacilityDef struct {
	ID             string      `json:"id"`
	RequiredInput  string      `json:"required_input,omitempty"`
	Product        string      `json:"product,omitempty"`
	ProductionTime LeveledStat `json:"production_time"`
	Capacity       LeveledStat `json:"capacity"`
	PrepareTime    float64     `json:"prepare_time,omitempty"`
}

func (d FacilityDef) MaxLevel() int {
	a, b := d.ProductionTime.MaxLevel(), d.Capacity.MaxLevel()
	if a < b {
		return a
	}
	return b
}

type AgentCatalog struct {
	ByID   map[string]AgentDef
	Digest string
}

type AgentDef struct {
	ID       string      `json:"id"`
	Capacity LeveledStat `json:"capacity"`
	Speed    LeveledStat `json:"speed"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadFacilities(filepath.Join(configDir, "facilities.json"), &c.Facilities); err != nil {
		return nil, err
	}
	if err := loadAgents(filepath.Join(configDir, "agents.json"), &c.Agents); err != nil {
		return nil, err
	}
	if err := c.crossCheck(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Template resolves an item kind to its spawn descriptor.
func (c *Catalogs) Template(kind model.ItemKind) (ItemDef, error) {
	d, ok := c.Items.Defs[string(kind)]
	if !ok {
		return ItemDef{}, fmt.Errorf("%w: %s", ErrUnknownItem, kind)
	}
	return d, nil
}

func (c *Catalogs) Facility(id string) (FacilityDef, error) {
	d, ok := c.Facilities.ByID[id]
	if !ok {
		return FacilityDef{}, fmt.Errorf("%w: %s", ErrUnknownFacility, id)
	}
	return d, nil
}

func (c *Catalogs) Agent(id string) (AgentDef, error) {
	d, ok := c.Agents.ByID[id]
	if !ok {
		return AgentDef{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return d, nil
}

// crossCheck rejects facilities that reference items missing from items.json.
func (c *Catalogs) crossCheck() error {
	ids := make([]string, 0, len(c.Facilities.ByID))
	for id := range c.Facilities.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := c.Facilities.ByID[id]
		for _, ref := range []string{f.RequiredInput, f.Product} {
			if ref == "" {
				continue
			}
			if _, ok := c.Items.Defs[ref]; !ok {
				return fmt.Errorf("facilities.json: %s: %w: %s", id, ErrUnknownItem, ref)
			}
		}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func readValidated(path, schemaName string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	s, err := compileSchema(schemaName)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "mem://schemas/" + name
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return c.Compile(url)
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := readValidated(path, "items.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}
	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadFacilities(path string, out *FacilityCatalog) error {
	raw, err := readValidated(path, "facilities.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []FacilityDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("facilities.json: %w", err)
	}
	out.ByID = map[string]FacilityDef{}
	for _, d := range defs {
		if err := d.ProductionTime.validate(); err != nil {
			return fmt.Errorf("facilities.json: %s production_time: %w", d.ID, err)
		}
		if err := d.Capacity.validate(); err != nil {
			return fmt.Errorf("facilities.json: %s capacity: %w", d.ID, err)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadAgents(path string, out *AgentCatalog) error {
	raw, err := readValidated(path, "agents.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []AgentDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("agents.json: %w", err)
	}
	out.ByID = map[string]AgentDef{}
	for _, d := range defs {
		out.ByID[d.ID] = d
	}
	return nil
}
