package main

import (
	"embed"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/constraints"
	"github.com/R3E-Network/mvc_layer/pkg/filters"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

//go:embed assets
var assets embed.FS

type employee struct {
	ID         int    `json:"id" xml:"Id"`
	Name       string `json:"name" xml:"Name" binding:"required"`
	Department string `json:"department,omitempty" xml:"Department,omitempty"`
}

// directory is the in-memory employee store behind the sample actions.
type directory struct {
	mu     sync.RWMutex
	byID   map[int]employee
	nextID int
}

func newDirectory(seed ...employee) *directory {
	d := &directory{byID: make(map[int]employee), nextID: 1}
	for _, e := range seed {
		d.add(e)
	}
	return d
}

func (d *directory) add(e employee) employee {
	d.mu.Lock()
	defer d.mu.Unlock()
	e.ID = d.nextID
	d.nextID++
	d.byID[e.ID] = e
	return e
}

func (d *directory) get(id int) (employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	return e, ok
}

func (d *directory) list(department string) []employee {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]employee, 0, len(d.byID))
	for _, e := range d.byID {
		if department == "" || strings.EqualFold(e.Department, department) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// employeeActions registers the employees controller.
func employeeActions(dir *directory) *actions.Group {
	g := actions.NewGroup("Employees", "/employees")

	g.Action("List", func(_ *actions.ActionContext, args actions.Arguments) (any, error) {
		return results.NewObjectResult(dir.list(actions.Arg[string](args, "department"))), nil
	}).Get("").Params(actions.Param[string]("department", actions.FromQuery))

	g.Action("Get", func(_ *actions.ActionContext, args actions.Arguments) (any, error) {
		id := actions.Arg[int](args, "id")
		e, ok := dir.get(id)
		if !ok {
			return nil, errors.NotFound("employee", strconv.Itoa(id))
		}
		return &e, nil
	}).Get("/{id:[0-9]+}").Params(actions.Param[int]("id", actions.FromRoute, actions.Required))

	g.Action("GetXML", func(_ *actions.ActionContext, args actions.Arguments) (any, error) {
		id := actions.Arg[int](args, "id")
		e, ok := dir.get(id)
		if !ok {
			return nil, errors.NotFound("employee", strconv.Itoa(id))
		}
		return results.NewObjectResult(&e), nil
	}).Get("/{id:[0-9]+}/xml").
		Params(actions.Param[int]("id", actions.FromRoute, actions.Required)).
		Filter(filters.NewProduces("application/xml"), 0)

	g.Action("Page", func(ac *actions.ActionContext, args actions.Arguments) (any, error) {
		id := actions.Arg[int](args, "id")
		e, ok := dir.get(id)
		if !ok {
			return nil, errors.NotFound("employee", strconv.Itoa(id))
		}
		return &results.ViewResult{
			ViewName: "employee",
			Model:    e,
			ViewData: map[string]any{"traceID": ac.TraceID},
		}, nil
	}).Get("/{id:[0-9]+}/page").Params(actions.Param[int]("id", actions.FromRoute, actions.Required))

	g.Action("Create", func(_ *actions.ActionContext, args actions.Arguments) (any, error) {
		e := dir.add(actions.Arg[employee](args, "employee"))
		return &results.ObjectResult{Value: e, StatusCode: http.StatusCreated}, nil
	}).Post("").Consumes("application/json", "application/xml").
		Params(actions.Param[employee]("employee", actions.FromBody, actions.Required)).
		Filter(filters.ValidateModelState{}, 0)

	g.Action("Export", func(*actions.ActionContext, actions.Arguments) (any, error) {
		var b strings.Builder
		b.WriteString("id,name,department\n")
		for _, e := range dir.list("") {
			fmt.Fprintf(&b, "%d,%s,%s\n", e.ID, e.Name, e.Department)
		}
		return results.Content{Content: b.String(), ContentType: "text/csv; charset=utf-8"}, nil
	}).Get("/export").
		Constraint(constraints.MustScript(`request.headers["x-export"] === "allowed"`))

	return g
}

// miscActions registers the pairs, files and home actions.
func miscActions() []actions.DescriptorProvider {
	pair := actions.Action("Pair", func(_ *actions.ActionContext, args actions.Arguments) (any, error) {
		return actions.Arg[modelbinding.KeyValuePair[string, int]](args, "pair"), nil
	}).Controller("Pairs").Post("/pairs").
		Params(actions.Param[modelbinding.KeyValuePair[string, int]]("pair"))

	handbook := actions.Action("Handbook", func(*actions.ActionContext, actions.Arguments) (any, error) {
		f := results.NewFileResult(assets, "assets/handbook.txt", "")
		f.FileDownloadName = "handbook.txt"
		return f, nil
	}).Controller("Files").Get("/files/handbook").
		Property(filters.AllowAnonymousProperty, true)

	home := actions.Action("Index", func(*actions.ActionContext, actions.Arguments) (any, error) {
		return results.NewRedirect("~/employees", false)
	}).Controller("Home").Get("/").
		Property(filters.AllowAnonymousProperty, true)

	return []actions.DescriptorProvider{pair, handbook, home}
}
