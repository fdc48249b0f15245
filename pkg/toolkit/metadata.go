package toolkit

type (
	// Metadata declares the schema shape migrations are generated
	// toward for one logical database.
	Metadata struct {
		Tables []Table `yaml:"tables"`
	}

	// Table declares one table.
	Table struct {
		Name    string   `yaml:"name"`
		Columns []Column `yaml:"columns"`
	}

	// Column declares one column. Default is the server default
	// expression as it appears in DDL, empty when none.
	Column struct {
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		Nullable bool   `yaml:"nullable"`
		Default  string `yaml:"default"`
	}
)

// Table returns the declared table with the given name, or nil.
func (m *Metadata) Table(name string) *Table {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i]
		}
	}

	return nil
}

// Column returns the declared column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}

	return nil
}
