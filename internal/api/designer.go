package api

import (
	"context"
	"time"

	"designer/internal/access"
	"designer/internal/datadef"
	"designer/internal/iface"
	"designer/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Designer — всё, что нужно обработчикам. Состояния в памяти нет, кроме ленты уведомлений.
type Designer struct {
	Defs    *datadef.Manager
	Access  *access.Manager
	Ifaces  *iface.Generator
	Scanner iface.Scanner

	Feed     *notify.Feed
	Notifier notify.Notifier // как минимум Feed; плюс NATS, если настроен

	QueryTimeout time.Duration
}

// queryCtx — контекст запроса к источнику, ограниченный таймаутом сервера.
func (d *Designer) queryCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	if d.QueryTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), d.QueryTimeout)
}

// emit не роняет запрос, если доставка уведомления не удалась.
func (d *Designer) emit(c *gin.Context, ev notify.Event) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Notify(c.Request.Context(), ev); err != nil {
		log.Warn().Err(err).Str("type", ev.Type).Str("request_id", requestID(c)).Msg("notification not delivered")
	}
}
