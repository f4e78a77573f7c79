package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/kinship/schema/field"
	"github.com/syssam/kinship/schema/rel"
)

// yamlDoc is the on-disk schema document:
//
//	entities:
//	  - name: User
//	    table: users
//	    id: id
//	    columns: {id: int64, name: string}
//	morphs:
//	  post: Post
//	relationships:
//	  - {owner: User, name: posts, type: hasMany, target: Post}
//	  - {owner: User, name: roles, type: manyToMany, target: Role, pivot: role_user}
type yamlDoc struct {
	Entities      []yamlEntity      `yaml:"entities"`
	Morphs        map[string]string `yaml:"morphs"`
	Relationships []yamlRel         `yaml:"relationships"`
}

type yamlEntity struct {
	Name    string            `yaml:"name"`
	Table   string            `yaml:"table"`
	ID      string            `yaml:"id"`
	Columns map[string]string `yaml:"columns"`
}

type yamlRel struct {
	Owner          string   `yaml:"owner"`
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"`
	Target         string   `yaml:"target"`
	Through        []string `yaml:"through"`
	Morph          string   `yaml:"morph"`
	LocalKey       string   `yaml:"local_key"`
	ForeignKey     string   `yaml:"foreign_key"`
	OwnerKey       string   `yaml:"owner_key"`
	Pivot          string   `yaml:"pivot"`
	PivotOwnerKey  string   `yaml:"pivot_owner_key"`
	PivotTargetKey string   `yaml:"pivot_target_key"`
	FirstKey       string   `yaml:"first_key"`
	SecondKey      string   `yaml:"second_key"`
}

// FromYAML builds a registry from a schema document. Entities are
// registered first, then morph tags, then relationships, so definitions
// can reference any entity in the document regardless of order.
func FromYAML(data []byte) (*Registry, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse document: %w", err)
	}
	reg := NewRegistry()
	for _, ye := range doc.Entities {
		cols := make(map[string]field.Type, len(ye.Columns))
		for name, tn := range ye.Columns {
			cols[name] = field.ParseType(tn)
		}
		if err := reg.Register(&Entity{Name: ye.Name, Table: ye.Table, ID: ye.ID, Columns: cols}); err != nil {
			return nil, err
		}
	}
	for tag, entity := range doc.Morphs {
		if err := reg.RegisterMorphType(tag, entity); err != nil {
			return nil, err
		}
	}
	for _, yr := range doc.Relationships {
		def, err := yr.definition()
		if err != nil {
			return nil, err
		}
		if err := reg.Define(yr.Owner, yr.Name, def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// FromYAMLFile builds a registry from a schema document on disk.
func FromYAMLFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return FromYAML(data)
}

// definition maps the document relationship to its builder.
func (yr yamlRel) definition() (rel.Definition, error) {
	var b *rel.Builder
	switch yr.Type {
	case "hasOne":
		b = rel.HasOne(yr.Target)
	case "hasMany":
		b = rel.HasMany(yr.Target)
	case "belongsTo":
		b = rel.BelongsTo(yr.Target)
	case "manyToMany":
		b = rel.ManyToMany(yr.Target)
	case "hasOneThrough":
		b = rel.HasOneThrough(yr.Target, yr.Through...)
	case "hasManyThrough":
		b = rel.HasManyThrough(yr.Target, yr.Through...)
	case "morphMany":
		b = rel.MorphMany(yr.Target, yr.Morph)
	case "morphToMany":
		b = rel.MorphToMany(yr.Target, yr.Morph)
	case "morphTo":
		b = rel.MorphOf(yr.Morph)
	default:
		return nil, fmt.Errorf("schema: relationship %s.%s has unknown type %q", yr.Owner, yr.Name, yr.Type)
	}
	if yr.LocalKey != "" {
		b.LocalKey(yr.LocalKey)
	}
	if yr.ForeignKey != "" {
		b.ForeignKey(yr.ForeignKey)
	}
	if yr.OwnerKey != "" {
		b.OwnerKey(yr.OwnerKey)
	}
	if yr.Pivot != "" {
		b.Pivot(yr.Pivot)
	}
	if yr.PivotOwnerKey != "" {
		b.PivotOwnerKey(yr.PivotOwnerKey)
	}
	if yr.PivotTargetKey != "" {
		b.PivotTargetKey(yr.PivotTargetKey)
	}
	if yr.FirstKey != "" {
		b.FirstKey(yr.FirstKey)
	}
	if yr.SecondKey != "" {
		b.SecondKey(yr.SecondKey)
	}
	return b, nil
}
