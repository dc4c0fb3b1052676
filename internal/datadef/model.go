package datadef

import "strings"

type SourceType string

const (
	SourceMySQL      SourceType = "mysql"
	SourceREST       SourceType = "rest"
	SourceFileSystem SourceType = "filesystem"
	SourcePostgres   SourceType = "postgres"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceMySQL, SourceREST, SourceFileSystem, SourcePostgres:
		return true
	}
	return false
}

func (t SourceType) IsSQL() bool { return t == SourceMySQL || t == SourcePostgres }

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

var fieldTypes = []FieldType{FieldString, FieldNumber, FieldBoolean, FieldDate, FieldArray, FieldObject}

func (t FieldType) Valid() bool {
	for _, ft := range fieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// DataSource — подключение (mysql/rest/filesystem/postgres); форма Config зависит от Type.
type DataSource struct {
	Name      string         `yaml:"name" json:"name" binding:"required"`
	Type      SourceType     `yaml:"type" json:"type" binding:"required"`
	Config    map[string]any `yaml:"config" json:"config"`
	Schema    []string       `yaml:"schema,omitempty" json:"schema,omitempty"`
	CreatedAt string         `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt string         `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Field описывает поле объекта и откуда оно берётся в источнике (Mapping).
type Field struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Mapping  string    `yaml:"mapping" json:"mapping"`
}

// ObjectDef — пользовательская схема объекта поверх источника данных.
// Name в файле не хранится как ключ: имя берётся из имени файла.
type ObjectDef struct {
	Name       string  `yaml:"name,omitempty" json:"name"`
	Source     string  `yaml:"source" json:"source"`
	PrimaryKey string  `yaml:"primaryKey" json:"primaryKey"`
	DataSource string  `yaml:"dataSource" json:"dataSource"`
	Fields     []Field `yaml:"fields" json:"fields"`
	CreatedAt  string  `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt  string  `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Field возвращает поле по имени (регистр учитывается).
func (o *ObjectDef) Field(name string) (Field, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AccessConfig — содержимое _access.yaml.
type AccessConfig struct {
	DataSources []DataSource `yaml:"dataSources" json:"dataSources"`
}

// ==== типизированные конфиги источников ====

type MySQLConfig struct {
	Server   string `yaml:"server" validate:"required"`
	Port     string `yaml:"port"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" validate:"required"`
}

type PostgresConfig struct {
	Server   string `yaml:"server" validate:"required"`
	Port     string `yaml:"port"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" validate:"required"`
	Schema   string `yaml:"schema"`
	SSLMode  string `yaml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

type RESTConfig struct {
	BaseURL        string `yaml:"baseUrl" validate:"required,url"`
	Authentication string `yaml:"authentication" validate:"omitempty,oneof=none apikey basic"`
	APIKey         string `yaml:"apiKey" validate:"required_if=Authentication apikey"`
	Username       string `yaml:"username" validate:"required_if=Authentication basic"`
	Password       string `yaml:"password" validate:"required_if=Authentication basic"`
}

type FileSystemConfig struct {
	BasePath string `yaml:"basePath" validate:"required"`
	Format   string `yaml:"format" validate:"omitempty,oneof=json csv xml"`
}

// IsGCS — basePath вида gs://bucket/prefix
func (c FileSystemConfig) IsGCS() bool {
	return strings.HasPrefix(strings.ToLower(c.BasePath), "gs://")
}
