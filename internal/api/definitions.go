package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"designer/internal/datadef"
	"designer/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type saveConfigRequest struct {
	DataSource        *datadef.DataSource `json:"dataSource"`
	Object            *datadef.ObjectDef  `json:"object"`
	Objects           []datadef.ObjectDef `json:"objects"`
	GenerateInterface bool                `json:"generateInterface"`
}

// POST /designer/data/save-config
// Сначала проверяются все объекты, потом что-то пишется: половину конфигурации не сохраняем.
func SaveConfigHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req saveConfigRequest
		if !bindJSON(c, &req) {
			return
		}
		objects := req.Objects
		if req.Object != nil {
			objects = append([]datadef.ObjectDef{*req.Object}, objects...)
		}
		if req.DataSource == nil || len(objects) == 0 {
			writeError(c, fmt.Errorf("%w: missing dataSource or object schema", datadef.ErrInvalid))
			return
		}
		ds := *req.DataSource
		if err := datadef.ValidateDataSource(ds); err != nil {
			writeError(c, err)
			return
		}

		var problems []string
		for i := range objects {
			objects[i].DataSource = ds.Name
			for _, p := range datadef.ValidateObjectDefinition(objects[i]) {
				problems = append(problems, objectLabel(objects[i], i)+": "+p)
			}
		}
		if len(problems) > 0 {
			writeError(c, &datadef.ValidationError{Problems: problems})
			return
		}

		ctx := c.Request.Context()
		saved, err := d.Defs.SaveDataSourceConfig(ctx, ds)
		if err != nil {
			writeError(c, err)
			return
		}
		d.emit(c, notify.Event{
			Type:       notify.DataSourceSaved,
			Status:     notify.StatusSuccess,
			Message:    fmt.Sprintf("Data source %s saved", saved.Name),
			DataSource: saved.Name,
		})

		schemas := make([]string, 0, len(objects))
		interfaces := []string{}
		for _, obj := range objects {
			out, err := d.Defs.SaveObjectDefinition(ctx, obj)
			if err != nil {
				writeError(c, err)
				return
			}
			schemas = append(schemas, out.Name)
			d.emit(c, notify.Event{
				Type:       notify.ObjectSaved,
				Status:     notify.StatusSuccess,
				Message:    fmt.Sprintf("Object %s saved", out.Name),
				DataSource: out.DataSource,
				Object:     out.Name,
			})

			if !req.GenerateInterface || d.Ifaces == nil {
				continue
			}
			if _, err := d.Ifaces.AddToFile(ctx, out); err != nil {
				// определение уже сохранено; интерфейс можно перегенерировать отдельно
				log.Error().Err(err).Str("object", out.Name).Msg("interface generation failed")
				d.emit(c, notify.Event{
					Type:       notify.InterfaceUpdated,
					Status:     notify.StatusError,
					Message:    fmt.Sprintf("Interface for %s not generated: %v", out.Name, err),
					DataSource: out.DataSource,
					Object:     out.Name,
				})
				continue
			}
			interfaces = append(interfaces, out.Name)
			d.emit(c, notify.Event{
				Type:       notify.InterfaceUpdated,
				Status:     notify.StatusSuccess,
				Message:    fmt.Sprintf("Interface for %s updated", out.Name),
				DataSource: out.DataSource,
				Object:     out.Name,
			})
		}

		body := gin.H{
			"success":       true,
			"message":       "Data source and object schema saved successfully",
			"dataSource":    saved.Name,
			"objectSchemas": schemas,
		}
		if req.GenerateInterface {
			body["interfaces"] = interfaces
		}
		c.JSON(http.StatusOK, body)
	}
}

func objectLabel(obj datadef.ObjectDef, i int) string {
	if obj.Name != "" {
		return obj.Name
	}
	return fmt.Sprintf("object %d", i+1)
}

type analyzeChangesRequest struct {
	ObjectName     string             `json:"objectName"`
	DataSourceName string             `json:"dataSourceName"`
	NewObject      *datadef.ObjectDef `json:"newObject"`
	// старое имя поля в клиенте
	NewObjectSchema *datadef.ObjectDef `json:"newObjectSchema"`
}

// POST /designer/data/analyze-changes
func AnalyzeChangesHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analyzeChangesRequest
		if !bindJSON(c, &req) {
			return
		}
		newObj := req.NewObject
		if newObj == nil {
			newObj = req.NewObjectSchema
		}
		if strings.TrimSpace(req.ObjectName) == "" || strings.TrimSpace(req.DataSourceName) == "" || newObj == nil {
			writeError(c, fmt.Errorf("%w: missing required parameters", datadef.ErrInvalid))
			return
		}

		res := d.Defs.GetObjectWithChanges(req.ObjectName, req.DataSourceName, *newObj)
		c.JSON(http.StatusOK, gin.H{
			"isNew":    res.IsNew,
			"changes":  res.Changes,
			"yamlDiff": res.YAMLDiff,
		})
	}
}

type deleteObjectRequest struct {
	ObjectName      string `json:"objectName" binding:"required"`
	DataSourceName  string `json:"dataSourceName" binding:"required"`
	RemoveInterface bool   `json:"removeInterface"`
}

// POST /designer/data/delete-object
func DeleteObjectHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deleteObjectRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		if err := d.Defs.DeleteObjectDefinition(ctx, req.ObjectName, req.DataSourceName); err != nil {
			writeError(c, err)
			return
		}
		d.emit(c, notify.Event{
			Type:       notify.ObjectDeleted,
			Status:     notify.StatusSuccess,
			Message:    fmt.Sprintf("Object %s deleted", req.ObjectName),
			DataSource: req.DataSourceName,
			Object:     req.ObjectName,
		})

		removed := false
		if req.RemoveInterface && d.Ifaces != nil {
			ok, err := d.Ifaces.RemoveFromFile(ctx, req.ObjectName)
			if err != nil {
				log.Error().Err(err).Str("object", req.ObjectName).Msg("interface removal failed")
			}
			removed = ok
			if ok {
				d.emit(c, notify.Event{
					Type:       notify.InterfaceRemoved,
					Status:     notify.StatusSuccess,
					Message:    fmt.Sprintf("Interface for %s removed", req.ObjectName),
					DataSource: req.DataSourceName,
					Object:     req.ObjectName,
				})
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "interfaceRemoved": removed})
	}
}

// GET /designer/data/lint
func LintHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := d.Defs.Lint()
		if issues == nil {
			issues = []datadef.Issue{}
		}
		c.JSON(http.StatusOK, gin.H{"ok": len(issues) == 0, "issues": issues})
	}
}

// GET /designer/notifications
func NotificationsHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Feed == nil {
			writeError(c, errors.New("notification feed is not configured"))
			return
		}
		c.JSON(http.StatusOK, d.Feed.List())
	}
}
