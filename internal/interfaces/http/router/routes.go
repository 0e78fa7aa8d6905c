package router

import (
	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/handler"
	"github.com/herbtrace/backend/internal/interfaces/http/middleware"
)

// fieldRoles are the roles that take part in the supply chain
var fieldRoles = []shared.Role{shared.RoleCollector, shared.RoleLab, shared.RoleProcessor}

// Handlers bundles the traceability handlers
type Handlers struct {
	Events *handler.EventHandler
	Items  *handler.ItemHandler
	Trace  *handler.TraceHandler
	Audit  *handler.AuditHandler
}

// Guards are per-route middleware that depend on runtime wiring
type Guards struct {
	// Idempotency replays repeated event writes; nil disables it
	Idempotency gin.HandlerFunc
	// TraceLimit throttles the public trace endpoint; nil disables it
	TraceLimit gin.HandlerFunc
}

// TraceabilityRoutes returns the domain groups served under the versioned prefix.
// Writes require the matching field role; administrators pass every role check.
func TraceabilityRoutes(h Handlers, g Guards) []*DomainGroup {
	events := NewDomainGroup("events", "/events")
	if g.Idempotency != nil {
		events.Use(g.Idempotency)
	}
	events.POST("/collection", middleware.RequireRole(shared.RoleCollector), h.Events.RecordCollection)
	events.POST("/quality-test", middleware.RequireRole(shared.RoleLab), h.Events.RecordQualityTest)
	events.POST("/processing", middleware.RequireRole(shared.RoleProcessor), h.Events.RecordProcessingStep)

	items := NewDomainGroup("items", "/items")
	items.GET("", middleware.RequireRole(fieldRoles...), h.Items.List)
	item := items.Group("item", "/:itemId")
	item.GET("", middleware.RequireRole(fieldRoles...), h.Items.Get)
	item.GET("/journey", middleware.RequireRole(fieldRoles...), h.Items.GetJourney)
	item.PATCH("/metadata", middleware.RequireRole(shared.RoleCollector), h.Items.UpdateMetadata)
	item.GET("/audit", middleware.RequireRole(shared.RoleAdmin), h.Audit.ListForItem)

	trace := NewDomainGroup("trace", "/trace")
	if g.TraceLimit != nil {
		trace.POST("", g.TraceLimit, h.Trace.Lookup)
	} else {
		trace.POST("", h.Trace.Lookup)
	}

	traceCodes := NewDomainGroup("trace-codes", "/trace-codes")
	traceCodes.Use(middleware.RequireRole(shared.RoleAdmin))
	traceCodes.POST("/:code/deactivate", h.Trace.Deactivate)

	audit := NewDomainGroup("audit", "/audit")
	audit.Use(middleware.RequireRole(shared.RoleAdmin))
	audit.GET("/failed", h.Audit.ListFailed)
	audit.POST("/:recordId/resubmit", h.Audit.Resubmit)

	return []*DomainGroup{events, items, trace, traceCodes, audit}
}

// RegisterTraceability registers the traceability groups on r
func RegisterTraceability(r *Router, h Handlers, g Guards) []*DomainGroup {
	groups := TraceabilityRoutes(h, g)
	for _, group := range groups {
		r.Register(group)
	}
	return groups
}
