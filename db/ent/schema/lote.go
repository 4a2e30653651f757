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

type Lote struct{ ent.Schema }

func (Lote) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "lotes"},
	}
}

func (Lote) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("source_path").NotEmpty().MaxLen(1024),
		field.String("filename").NotEmpty().MaxLen(255),
		// sha256 of the file bytes
		field.Bytes("content_hash").NotEmpty().Unique().Immutable(),
		field.Int64("file_size").NonNegative(),
		field.Int("pages").Default(0),
		field.String("status").
			Default(string(constants.BatchQueued)).
			Validate(utils.EnumValidator(constants.BatchStatusStrings()...)),
		field.Int("matched").Default(0),
		field.Int("unmatched").Default(0),
		field.Int("written").Default(0),
		field.Int("failed").Default(0),
		field.String("error_message").MaxLen(2048).Optional().Nillable(),
		field.Time("uploaded_at").Default(time.Now),
		field.Time("finished_at").Optional().Nillable(),
	}
}

func (Lote) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("documentos", Documento.Type).
			Annotations(entsql.OnDelete(entsql.SetNull)),
	}
}

func (Lote) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "uploaded_at"),
	}
}
