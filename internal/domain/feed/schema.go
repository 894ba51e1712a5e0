package feed

// SemanticType is the storage-independent type of a column.
type SemanticType string

const (
	Integer   SemanticType = "integer"
	Float     SemanticType = "float"
	String    SemanticType = "string"
	Timestamp SemanticType = "timestamp"
)

// Column describes one column of a Feed Schema.
type Column struct {
	Name          string
	Type          SemanticType
	Nullable      bool
	Size          int // character length for String columns, 0 for unbounded
	PrimaryKey    bool
	AutoIncrement bool
}

// Schema is the ordered column list of a feed table.
type Schema struct {
	Table   string
	Columns []Column
}

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

func idColumn() Column {
	return Column{Name: "id", Type: Integer, PrimaryKey: true, AutoIncrement: true}
}

func nullableString(name string, size int) Column {
	return Column{Name: name, Type: String, Nullable: true, Size: size}
}

// SchemaFor returns the Feed Schema of f. The zero Schema is returned for unknown feeds.
func SchemaFor(f Feed) Schema {
	switch f {
	case KpIndex:
		return Schema{Table: f.TableName(), Columns: []Column{
			idColumn(),
			{Name: "time_tag", Type: Timestamp},
			{Name: "kp_index", Type: Integer},
			{Name: "estimated_kp", Type: Float},
			{Name: "kp", Type: String, Size: 10},
		}}
	case Weather:
		return Schema{Table: f.TableName(), Columns: []Column{
			idColumn(),
			{Name: "hora", Type: Timestamp},
			{Name: "temperatura", Type: Float},
			{Name: "velocidade_vent", Type: Float},
			{Name: "direcao_vent", Type: Float},
			{Name: "latitude", Type: Float},
			{Name: "longitude", Type: Float},
		}}
	case Device:
		return Schema{Table: f.TableName(), Columns: []Column{
			idColumn(),
			nullableString("ip", 50),
			nullableString("hostname", 100),
			nullableString("city", 50),
			nullableString("region", 50),
			nullableString("country", 10),
			nullableString("longitude", 50),
			nullableString("latitude", 50),
			nullableString("org", 100),
			nullableString("postal", 20),
			nullableString("timezone", 50),
		}}
	}
	return Schema{}
}
