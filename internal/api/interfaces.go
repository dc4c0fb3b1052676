package api

import (
	"errors"
	"fmt"
	"net/http"

	"designer/internal/datadef"
	"designer/internal/iface"
	"designer/internal/notify"

	"github.com/gin-gonic/gin"
)

// GET /designer/interfaces/scan?path=...&path=...
func ScanInterfacesHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := d.Scanner.Scan(c.QueryArray("path"))
		if errors.Is(err, iface.ErrOutsideRoot) {
			err = fmt.Errorf("%w: %w", datadef.ErrInvalid, err)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GET /designer/interfaces/:object
func CheckInterfaceHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := d.Ifaces.CheckExists(c.Param("object"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /designer/interfaces — тело: ObjectDef.
func GenerateInterfaceHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var obj datadef.ObjectDef
		if !bindJSON(c, &obj) {
			return
		}
		if obj.Name == "" {
			writeError(c, &datadef.ValidationError{Problems: []string{"Object name is required"}})
			return
		}
		code, err := d.Ifaces.AddToFile(c.Request.Context(), obj)
		if err != nil {
			writeError(c, err)
			return
		}
		d.emit(c, notify.Event{
			Type:       notify.InterfaceUpdated,
			Status:     notify.StatusSuccess,
			Message:    fmt.Sprintf("Interface for %s updated", obj.Name),
			DataSource: obj.DataSource,
			Object:     obj.Name,
		})
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"interfaceName": iface.InterfaceName(obj.Name),
			"code":          code,
		})
	}
}

// DELETE /designer/interfaces/:object
func RemoveInterfaceHandler(d *Designer) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("object")
		removed, err := d.Ifaces.RemoveFromFile(c.Request.Context(), name)
		if err != nil {
			writeError(c, err)
			return
		}
		if removed {
			d.emit(c, notify.Event{
				Type:    notify.InterfaceRemoved,
				Status:  notify.StatusSuccess,
				Message: fmt.Sprintf("Interface for %s removed", name),
				Object:  name,
			})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
	}
}
