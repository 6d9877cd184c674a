package container

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedShape struct {
	Name  string `inject:"name"`
	Count int    `inject:" count , optional "`
	plain int
}

type hiddenShape struct {
	secret string `inject:""`
}

type embeddedBase struct {
	Name string `inject:"name"`
}

type embeddingShape struct {
	embeddedBase
	Port int `inject:"port,optional"`
}

type ctorShape struct{ n int }

type lateShape struct{}

type dupShape struct{}

type iface interface{ M() }

// ── Analyze ───────────────────────────────────────────────────────────────────

func TestAnalyze_CachesResult(t *testing.T) {
	before := analysisRuns.Load()

	first, err := Analyze(TypeOf[*cachedShape]())
	require.NoError(t, err)
	second, err := Analyze(TypeOf[*cachedShape]())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), analysisRuns.Load()-before)

	require.Len(t, first.Members, 2)
	assert.Equal(t, Dependency{Type: TypeOf[string](), ID: "name"}, first.Members[0].Dependency)
	assert.Equal(t, Dependency{Type: TypeOf[int](), ID: "count", Optional: true}, first.Members[1].Dependency)
	assert.False(t, first.HasConstructor())

	c := New()
	_, err = c.InstantiateType(TypeOf[*cachedShape](), NamedArg("name", "x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), analysisRuns.Load()-before, "instantiation reuses the analysis")
}

func TestAnalyze_Rejections(t *testing.T) {
	_, err := Analyze(TypeOf[iface]())
	assert.ErrorIs(t, err, ErrAbstractType)

	_, err = Analyze(TypeOf[*hiddenShape]())
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Contains(t, err.Error(), "secret")

	_, err = Analyze(TypeOf[int]())
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = Analyze(nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestAnalyze_PromotedFields(t *testing.T) {
	a, err := Analyze(TypeOf[*embeddingShape]())
	require.NoError(t, err)

	names := make([]string, 0, len(a.Members))
	for _, m := range a.Members {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Name", "Port"}, names)

	v, err := New().InstantiateType(TypeOf[*embeddingShape](), NamedArg("name", "svc"))
	require.NoError(t, err)
	assert.Equal(t, "svc", v.(*embeddingShape).Name)
}

// ── RegisterConstructor ───────────────────────────────────────────────────────

func TestRegisterConstructor_Validation(t *testing.T) {
	cases := map[string]struct {
		fn     any
		params []Param
	}{
		"nil":                {fn: nil},
		"not a function":     {fn: 42},
		"no results":         {fn: func() {}},
		"second not error":   {fn: func() (*ctorShape, int) { return nil, 0 }},
		"interface result":   {fn: func() iface { return nil }},
		"variadic":           {fn: func(...int) *ctorShape { return nil }},
		"too many params":    {fn: func() *ctorShape { return nil }, params: []Param{{}}},
		"nil function value": {fn: (func() *ctorShape)(nil)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := RegisterConstructor(tc.fn, tc.params...)
			assert.ErrorIs(t, err, ErrInvalidOperation)
		})
	}
	_, registered := constructors.Load(TypeOf[*ctorShape]())
	assert.False(t, registered)
}

func TestRegisterConstructor_AfterAnalysis(t *testing.T) {
	_, err := Analyze(TypeOf[*lateShape]())
	require.NoError(t, err)

	err = RegisterConstructor(func() *lateShape { return &lateShape{} })
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestRegisterConstructor_Duplicate(t *testing.T) {
	require.NoError(t, RegisterConstructor(func() dupShape { return dupShape{} }))
	err := RegisterConstructor(func() (dupShape, error) { return dupShape{}, nil })
	assert.ErrorIs(t, err, ErrAlreadyInstalled)
}

func TestRegisterConstructor_NonStructType(t *testing.T) {
	type port int
	require.NoError(t, RegisterConstructor(func(base int) port { return port(base + 1) }, Param{ID: "base"}))

	v, err := New().InstantiateType(TypeOf[port](), NamedArg("base", 8079))
	require.NoError(t, err)
	assert.Equal(t, port(8080), v)
}

// ── Children bookkeeping ──────────────────────────────────────────────────────

//go:noinline
func spawnAndDrop(c *Container) {
	_, _ = c.CreateSubContainer()
}

func TestChildren_CollectedChildrenArePruned(t *testing.T) {
	root := New()
	kept, err := root.CreateSubContainer()
	require.NoError(t, err)
	spawnAndDrop(root)
	require.Len(t, root.children, 2)

	for i := 0; i < 5 && len(root.Children()) > 1; i++ {
		runtime.GC()
	}

	assert.Equal(t, []*Container{kept}, root.Children())
	assert.Len(t, root.children, 1)
	runtime.KeepAlive(kept)
}
