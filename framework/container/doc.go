// Package container provides a hierarchical dependency-resolution container:
// typed bindings, conditional (contextual) bindings, constructor and field
// injection, child containers and propagated extensions.
//
// # Overview
//
// A Container owns a Binder (the binding table), an Injector (which builds
// instances) and an Extender (per-level extension instances). Lookups that
// miss on a container fall back to its parent, so child containers see every
// ancestor binding unless they shadow it.
//
// # Bindings
//
//	c := container.New()
//
//	// Transient: new instance on every lookup
//	container.Bind[Mailer](c).To(container.TypeOf[*SMTPMailer]()).AsTransient()
//
//	// Singleton: built once, reused
//	container.Bind[Logger](c).To(container.TypeOf[*ConsoleLogger]()).AsSingleton()
//
//	// Prebuilt value, with an identifier
//	container.Bind[*Config](c).WithID("app").ToInstance(cfg)
//
//	// Factory callback
//	container.Bind[*sql.DB](c).FromFactoryMethod(func(ctx container.InjectContext) (*sql.DB, error) {
//	    cfg := container.MustResolve[*Config](ctx.Container, "app")
//	    return sql.Open("postgres", cfg.DSN)
//	}).AsSingleton()
//
//	// Alias of another binding
//	container.Bind[Reader](c).FromResolve(container.KeyOf[*FileStore]())
//
// Registering the same (type, identifier, condition) twice fails with
// ErrDuplicateBinding; nothing is silently replaced.
//
// # Contextual Binding
//
// A binding with a condition wins over the unconditioned binding of the same
// key whenever its condition matches:
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(S3::class)
//	container.Bind[Filesystem](c).
//	    WhenInjectedInto(container.TypeOf[*PhotoController]()).
//	    To(container.TypeOf[*S3]()).AsSingleton()
//
// # Injection
//
// Structs are built from their zero value and their tagged fields are filled:
//
//	type PhotoController struct {
//	    Files Filesystem `inject:""`
//	    Log   Logger     `inject:"audit,optional"`
//	}
//
// Constructor injection goes through a process-wide constructor table:
//
//	container.RegisterConstructor(NewReports, container.Param{}, container.Param{ID: "replica"})
//
// The shape of each type is analyzed once and cached for the process.
//
// # Hierarchy and Extensions
//
//	child, err := c.CreateSubContainer()
//	container.Bind[Logger](child).ToInstance(requestLogger) // shadows c's Logger for child only
//
// Extensions installed with Container.Extend reach every live descendant
// and every child created afterwards. Children are tracked through weak
// pointers, so a parent never keeps a child alive.
//
// Containers are not safe for concurrent use.
package container
