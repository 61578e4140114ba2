package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIPrefix is where every versioned resource is mounted
const APIPrefix = "/api/v1"

// Route is one endpoint of a Group
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

// Group is a resource's endpoints sharing a prefix and middleware
type Group struct {
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// NewGroup starts an empty group at prefix
func NewGroup(prefix string, middleware ...gin.HandlerFunc) *Group {
	return &Group{Prefix: prefix, Middleware: middleware}
}

// Handle appends a route and returns the group for chaining
func (g *Group) Handle(method, path string, handlers ...gin.HandlerFunc) *Group {
	g.Routes = append(g.Routes, Route{Method: method, Path: path, Handlers: handlers})
	return g
}

func (g *Group) GET(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodGet, path, handlers...)
}

func (g *Group) POST(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPost, path, handlers...)
}

func (g *Group) PUT(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPut, path, handlers...)
}

func (g *Group) DELETE(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodDelete, path, handlers...)
}

// Mount registers every group under parent
func Mount(parent gin.IRouter, groups ...*Group) {
	for _, g := range groups {
		rg := parent.Group(g.Prefix, g.Middleware...)
		for _, r := range g.Routes {
			rg.Handle(r.Method, r.Path, r.Handlers...)
		}
	}
}
