package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/db/ent/schema/utils"
)

// Documento is one written artifact in a student's folder.
type Documento struct{ ent.Schema }

func (Documento) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "documentos"},
	}
}

func (Documento) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("tipo").NotEmpty().
			Validate(utils.EnumValidator(constants.AsStringSlice()...)),
		field.String("path").NotEmpty().MaxLen(1024).Unique(),
		// set by a human reviewer, never by the splitter
		field.Bool("validado").Default(false),
		field.Time("uploaded_at").Default(time.Now),
		// explicit FKs
		field.String("estudiante_run").NotEmpty(),
		field.UUID("lote_id", uuid.UUID{}).Optional().Nillable(),
	}
}

func (Documento) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("estudiante", Estudiante.Type).
			Ref("documentos").
			Field("estudiante_run").
			Unique().
			Required(),
		edge.From("lote", Lote.Type).
			Ref("documentos").
			Field("lote_id").
			Unique(),
	}
}

func (Documento) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("estudiante_run", "tipo"),
		index.Fields("lote_id"),
	}
}
