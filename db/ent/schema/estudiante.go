package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Estudiante is a roster row keyed by its canonical RUN.
type Estudiante struct{ ent.Schema }

func (Estudiante) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "estudiantes"},
	}
}

func (Estudiante) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").StorageKey("run").NotEmpty().MaxLen(12).Immutable(),
		field.String("nombres").MaxLen(120),
		field.String("apellidos").MaxLen(120),
		field.String("carrera").MaxLen(160).Default(""),
		field.String("modalidad").MaxLen(40).Default(""),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Estudiante) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("documentos", Documento.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (Estudiante) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("apellidos"),
	}
}
