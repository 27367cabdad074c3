// Package frontend is a read-only HTTP inspection surface over a live
// session: which host objects exist, which entities mirror them, and the
// full dump, for debugging a running bridge from the outside.
package frontend

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/dump"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
	"github.com/rigbridge/rigbridge/modules/ui"
	"github.com/rigbridge/rigbridge/modules/version"
)

type WebService struct {
	Router *gin.RouterGroup
	API    *gin.RouterGroup

	engine *gin.Engine
	scene  *scene.Scene
}

func NewWebservice(sc *scene.Scene) *WebService {
	gin.SetMode(gin.ReleaseMode) // Has to happen first
	ws := &WebService{
		engine: gin.New(),
		scene:  sc,
	}

	ws.engine.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		logger := ui.Info()
		if c.Writer.Status() >= 500 {
			logger = ui.Error()
		} else if c.Writer.Status() >= 400 {
			logger = ui.Warn()
		}
		logger.Msgf("%s %s (%v) %v, %v bytes", c.Request.Method, path, c.Writer.Status(), time.Since(start), c.Writer.Size())
	})
	ws.engine.Use(gin.Recovery())

	ws.Router = ws.engine.Group("")
	ws.API = ws.Router.Group("/api")

	ws.API.GET("/status", ws.status)
	ws.API.GET("/objects", ws.objects)
	ws.API.GET("/entities", ws.entities)
	ws.API.GET("/selection", ws.selection)
	ws.API.GET("/reports", ws.reports)
	ws.API.GET("/dump", ws.dump)

	return ws
}

// Serve blocks serving the API on the given address.
func (ws *WebService) Serve(bind string) error {
	ui.Info().Msgf("Serving inspection API on http://%v/api", bind)
	return ws.engine.Run(bind)
}

func (ws *WebService) status(c *gin.Context) {
	objects := 0
	ws.scene.Session.Proxies(func(*bridge.Proxy) bool {
		objects++
		return true
	})
	entities := 0
	ws.scene.Engine.Each(func(engine.Entity) bool {
		entities++
		return true
	})
	c.JSON(http.StatusOK, gin.H{
		"program":  version.ProgramVersionShort(),
		"objects":  objects,
		"entities": entities,
		"frame":    ws.scene.Session.Frame(),
	})
}

type objectInfo struct {
	Identity string        `json:"identity"`
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Type     string        `json:"type,omitempty"`
	Entity   engine.Entity `json:"entity,omitempty"`
	Alive    bool          `json:"alive"`
}

func (ws *WebService) objects(c *gin.Context) {
	var result []objectInfo
	ws.scene.Session.Proxies(func(p *bridge.Proxy) bool {
		result = append(result, objectInfo{
			Identity: p.Identity().String(),
			Name:     p.Name(),
			Kind:     p.Kind().String(),
			Type:     p.Type(),
			Entity:   ws.scene.EntityOf(p),
			Alive:    p.IsAlive(),
		})
		return true
	})
	c.JSON(http.StatusOK, result)
}

type entityInfo struct {
	Entity     engine.Entity `json:"entity"`
	Archetype  string        `json:"archetype"`
	Name       string        `json:"name"`
	Components []string      `json:"components"`
	Object     string        `json:"object,omitempty"`
}

func (ws *WebService) entities(c *gin.Context) {
	var result []entityInfo
	ws.scene.Engine.Each(func(e engine.Entity) bool {
		info := entityInfo{
			Entity:     e,
			Archetype:  ws.scene.Engine.Archetype(e),
			Name:       ws.scene.Engine.Name(e),
			Components: ws.scene.Engine.Components(e),
		}
		if p := ws.scene.Session.Alias(e); p != nil {
			info.Object = p.Identity().String()
		}
		result = append(result, info)
		return true
	})
	c.JSON(http.StatusOK, result)
}

func (ws *WebService) selection(c *gin.Context) {
	var result []string
	for _, p := range ws.scene.Session.Selection() {
		result = append(result, p.Name())
	}
	c.JSON(http.StatusOK, result)
}

func (ws *WebService) reports(c *gin.Context) {
	var result []string
	for _, r := range ws.scene.Session.Reports() {
		result = append(result, r.String())
	}
	c.JSON(http.StatusOK, result)
}

func (ws *WebService) dump(c *gin.Context) {
	data, err := dump.Export(ws.scene.Engine)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
