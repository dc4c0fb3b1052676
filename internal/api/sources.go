package api

import (
	"fmt"
	"net/http"
	"strings"

	"designer/internal/access"
	"designer/internal/datadef"
	"designer/internal/notify"

	"github.com/gin-gonic/gin"
)

// GET /designer/data/load-configs?dataSource=
func LoadConfigsHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		objects := d.Defs.LoadObjectDefinitions()
		if ds := strings.TrimSpace(c.Query("dataSource")); ds != "" {
			objects = d.Defs.LoadObjectsForDataSource(ds)
		}
		c.JSON(http.StatusOK, gin.H{
			"configs": d.Defs.LoadDataSources(),
			"objects": objects,
		})
	}
}

// GET /designer/data/sources
func ListSourcesHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Defs.LoadDataSources())
	}
}

// GET /designer/data/sources/:name
func GetSourceHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := d.Defs.LoadDataSource(c.Param("name"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ds)
	}
}

// DELETE /designer/data/sources/:name
func DeleteSourceHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := d.Defs.DeleteDataSource(c.Request.Context(), name); err != nil {
			writeError(c, err)
			return
		}
		d.emit(c, notify.Event{
			Type:       notify.DataSourceDeleted,
			Status:     notify.StatusSuccess,
			Message:    fmt.Sprintf("Data source %s deleted", name),
			DataSource: name,
		})
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// sourceRequest — либо имя сохранённого источника, либо черновой {type, config}.
type sourceRequest struct {
	DataSource string             `json:"dataSource"`
	Name       string             `json:"name"`
	Type       datadef.SourceType `json:"type"`
	Config     map[string]any     `json:"config"`
}

func (d *Designer) resolveSource(req sourceRequest, fallback datadef.SourceType) (datadef.DataSource, error) {
	if name := strings.TrimSpace(req.DataSource); name != "" {
		return d.Defs.LoadDataSource(name)
	}
	t := req.Type
	if t == "" {
		t = fallback
	}
	if t == "" {
		return datadef.DataSource{}, fmt.Errorf("%w: type is required", datadef.ErrInvalid)
	}
	if !t.Valid() {
		return datadef.DataSource{}, fmt.Errorf("%w: unsupported data source type %q", access.ErrWrongSourceType, t)
	}
	if req.Config == nil {
		return datadef.DataSource{}, fmt.Errorf("%w: config is required", datadef.ErrInvalid)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "draft"
	}
	return datadef.DataSource{Name: name, Type: t, Config: req.Config}, nil
}

// POST /designer/data/available-sources
func AvailableSourcesHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sourceRequest
		if !bindJSON(c, &req) {
			return
		}
		ds, err := d.resolveSource(req, "")
		if err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := d.queryCtx(c)
		defer cancel()

		sources, err := d.Access.AvailableSources(ctx, ds)
		if err != nil {
			writeError(c, err)
			return
		}
		if sources == nil {
			sources = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"sources": sources})
	}
}

// POST /designer/data/test-connection
// Недоступный источник — это 200 с success=false; 4xx только на кривой запрос.
func TestConnectionHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sourceRequest
		if !bindJSON(c, &req) {
			return
		}
		ds, err := d.resolveSource(req, "")
		if err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := d.queryCtx(c)
		defer cancel()

		res, err := d.Access.TestConnection(ctx, ds)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type tableFieldsRequest struct {
	sourceRequest
	Table string `json:"table" binding:"required"`
}

// POST /designer/data/table-fields
func TableFieldsHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tableFieldsRequest
		if !bindJSON(c, &req) {
			return
		}
		ds, err := d.resolveSource(req.sourceRequest, datadef.SourceMySQL)
		if err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := d.queryCtx(c)
		defer cancel()

		fields, err := d.Access.TableFields(ctx, ds, req.Table)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "fields": fields})
	}
}

type apiFieldsRequest struct {
	sourceRequest
	Endpoint string `json:"endpoint"`
}

// POST /designer/data/api-fields
func APIFieldsHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req apiFieldsRequest
		if !bindJSON(c, &req) {
			return
		}
		ds, err := d.resolveSource(req.sourceRequest, datadef.SourceREST)
		if err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := d.queryCtx(c)
		defer cancel()

		fields, err := d.Access.APIFields(ctx, ds, req.Endpoint)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "fields": fields})
	}
}

type fileFieldsRequest struct {
	sourceRequest
	Filename string `json:"filename" binding:"required"`
}

// POST /designer/data/file-fields
func FileFieldsHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fileFieldsRequest
		if !bindJSON(c, &req) {
			return
		}
		ds, err := d.resolveSource(req.sourceRequest, datadef.SourceFileSystem)
		if err != nil {
			writeError(c, err)
			return
		}
		ctx, cancel := d.queryCtx(c)
		defer cancel()

		fields, err := d.Access.FileFields(ctx, ds, req.Filename)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "fields": fields})
	}
}
