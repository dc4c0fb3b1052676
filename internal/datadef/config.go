package datadef

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

// в сообщениях — имена ключей из YAML, а не Go-поля
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decodeConfig раскладывает произвольный map (из JSON или YAML) в типизированный конфиг.
// Через yaml: числовой port спокойно ложится в string.
func decodeConfig(raw map[string]any, out any) error {
	b, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: encode config: %v", ErrInvalid, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decode config: %v", ErrInvalid, err)
	}
	return nil
}

func checkConfig(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("config.%s: failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func MySQL(raw map[string]any) (MySQLConfig, error) {
	var c MySQLConfig
	if err := decodeConfig(raw, &c); err != nil {
		return c, err
	}
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "3306"
	}
	return c, checkConfig(c)
}

func Postgres(raw map[string]any) (PostgresConfig, error) {
	var c PostgresConfig
	if err := decodeConfig(raw, &c); err != nil {
		return c, err
	}
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "5432"
	}
	if c.Schema == "" {
		c.Schema = "public"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return c, checkConfig(c)
}

func REST(raw map[string]any) (RESTConfig, error) {
	var c RESTConfig
	if err := decodeConfig(raw, &c); err != nil {
		return c, err
	}
	if c.Authentication == "" {
		c.Authentication = "none"
	}
	return c, checkConfig(c)
}

func FileSystem(raw map[string]any) (FileSystemConfig, error) {
	var c FileSystemConfig
	if err := decodeConfig(raw, &c); err != nil {
		return c, err
	}
	if c.Format == "" {
		c.Format = "json"
	}
	return c, checkConfig(c)
}

// ValidateDataSource проверяет имя, тип и форму конфига под тип.
func ValidateDataSource(ds DataSource) error {
	if strings.TrimSpace(ds.Name) == "" {
		return fmt.Errorf("%w: data source name is required", ErrInvalid)
	}
	if !safeSegment(ds.Name) {
		return fmt.Errorf("%w: data source name %q must not contain path separators", ErrInvalid, ds.Name)
	}
	var err error
	switch ds.Type {
	case SourceMySQL:
		_, err = MySQL(ds.Config)
	case SourcePostgres:
		_, err = Postgres(ds.Config)
	case SourceREST:
		_, err = REST(ds.Config)
	case SourceFileSystem:
		_, err = FileSystem(ds.Config)
	default:
		return fmt.Errorf("%w: unsupported data source type %q", ErrInvalid, ds.Type)
	}
	return err
}
