package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"designer/internal/access"
	"designer/internal/datadef"

	"github.com/gin-gonic/gin"
)

// GET /designer/data/objects/:object?dataSource=&_sort=&_limit=&_offset=&field=
func ObjectDataHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj, ds, err := d.Defs.GetObjectWithDataSource(c.Param("object"), c.Query("dataSource"))
		if err != nil {
			writeError(c, err)
			return
		}
		params := access.ParseListParams(c.Request.URL.Query())

		ctx, cancel := d.queryCtx(c)
		defer cancel()

		records, err := d.Access.FetchObjects(ctx, obj, ds)
		if err != nil {
			writeError(c, err)
			return
		}
		page, total := access.ApplyList(records, params)
		if page == nil {
			page = []map[string]any{}
		}

		c.Header("X-Total-Count", fmt.Sprint(total))
		c.JSON(http.StatusOK, gin.H{
			"object":     obj.Name,
			"dataSource": ds.Name,
			"data":       page,
			"total":      total,
		})
	}
}

// POST /designer/data/objects/:object?dataSource=
func CreateRecordHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj, ds, err := d.Defs.GetObjectWithDataSource(c.Param("object"), c.Query("dataSource"))
		if err != nil {
			writeError(c, err)
			return
		}
		var rec map[string]any
		if !bindJSON(c, &rec) {
			return
		}

		ctx, cancel := d.queryCtx(c)
		defer cancel()

		if err := d.Access.Insert(ctx, obj, ds, rec); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true})
	}
}

// POST /designer/data/files/:dataSource  (multipart, поле "file")
func UploadFileHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := d.Defs.LoadDataSource(c.Param("dataSource"))
		if err != nil {
			writeError(c, err)
			return
		}
		if ds.Type != datadef.SourceFileSystem {
			writeError(c, fmt.Errorf("%w: %s is a %s data source", access.ErrWrongSourceType, ds.Name, ds.Type))
			return
		}

		file, hdr, err := c.Request.FormFile("file")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid upload",
				"message": "multipart file not found (field name 'file')",
			})
			return
		}
		defer file.Close()

		ctx, cancel := d.queryCtx(c)
		defer cancel()

		stored, err := d.Access.UploadFile(ctx, ds, safeName(hdr), file, hdr.Header.Get("Content-Type"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"key":     stored.Key,
			"size":    stored.Size,
			"sha256":  stored.SHA256,
		})
	}
}

func safeName(h *multipart.FileHeader) string {
	name := filepath.Base(filepath.ToSlash(h.Filename))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
