package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/routing"
	"github.com/km-arc/go-ioc/framework/validation"
)

// ── Domain ────────────────────────────────────────────────────────────────────

type Greeter interface {
	Greet(name string) string
}

type politeGreeter struct {
	App config.AppConfig `inject:""`
}

func (g *politeGreeter) Greet(name string) string {
	return fmt.Sprintf("Hello %s, welcome to %s!", name, g.App.Name)
}

// ── Actions ───────────────────────────────────────────────────────────────────

// GreetAction handles GET /greet/{name}.
type GreetAction struct {
	Req     *routing.Request  `inject:""`
	Res     *routing.Response `inject:""`
	Greeter Greeter           `inject:""`
}

func (a *GreetAction) Handle(context.Context) error {
	a.Res.Success(map[string]any{"message": a.Greeter.Greet(a.Req.Param("name"))})
	return nil
}

// CreateUserAction handles POST /api/v1/users.
type CreateUserAction struct {
	Req *routing.Request  `inject:""`
	Res *routing.Response `inject:""`
}

func (a *CreateUserAction) Handle(context.Context) error {
	var body struct {
		Name string `json:"name"`
		Age  string `json:"age"`
	}
	if err := a.Req.Bind(&body); err != nil {
		return routing.Abort(http.StatusBadRequest, err.Error())
	}

	v := validation.Make(map[string]string{
		"name": body.Name,
		"age":  body.Age,
	}, validation.Rules{
		"name": "required|min:2|max:100",
		"age":  "required|integer|gte:18",
	})
	if v.Fails() {
		a.Res.ValidationError(v.Errors())
		return nil
	}

	a.Res.Created(map[string]any{"id": uuid.NewString(), "name": body.Name})
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := container.Bind[Greeter](application.Container).To(container.TypeOf[*politeGreeter]()).AsSingleton(); err != nil {
		log.Fatal(err)
	}

	router, err := application.Router()
	if err != nil {
		log.Fatal(err)
	}
	routing.Handle[*GreetAction](router, http.MethodGet, "/greet/{name}")
	router.Prefix("/api/v1", func(api *routing.Router) {
		routing.Handle[*CreateUserAction](api, http.MethodPost, "/users")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
