package scope_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	. "github.com/revisor-dev/revisor/pkg/scope"
	"github.com/revisor-dev/revisor/pkg/toolkit"
	"github.com/stretchr/testify/require"
)

type ormStub struct {
	engines   map[string]*toolkit.Engine
	metadatas map[string]*toolkit.Metadata
}

func (o *ormStub) Engines() map[string]*toolkit.Engine     { return o.engines }
func (o *ormStub) Metadatas() map[string]*toolkit.Metadata { return o.metadatas }

func TestTeardown(t *testing.T) {
	t.Run("runs callbacks in reverse order", func(t *testing.T) {
		app := New(AppParams{Name: "test"})

		var order []int
		app.OnTeardown(func(error) { order = append(order, 1) })
		app.OnTeardown(func(error) { order = append(order, 2) })
		app.OnTeardown(func(error) { order = append(order, 3) })

		app.Teardown(nil)
		require.Equal(t, []int{3, 2, 1}, order)
	})

	t.Run("passes the scope error through", func(t *testing.T) {
		app := New(AppParams{Name: "test"})
		cause := errors.New("boom")

		var got error
		app.OnTeardown(func(err error) { got = err })

		app.Teardown(cause)
		require.Equal(t, cause, got)
	})

	t.Run("callbacks stay registered across lifecycles", func(t *testing.T) {
		app := New(AppParams{Name: "test"})

		count := 0
		app.OnTeardown(func(error) { count++ })

		app.Teardown(nil)
		app.Teardown(nil)
		require.Equal(t, 2, count)
	})
}

func TestContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		app := New(AppParams{Name: "test"})
		ctx := NewContext(context.Background(), app)

		got, err := FromContext(ctx)
		require.NoError(t, err)
		require.Same(t, app, got)
	})

	t.Run("missing scope", func(t *testing.T) {
		_, err := FromContext(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "no active scope")
	})
}

func TestEngineSources(t *testing.T) {
	eng := &toolkit.Engine{Dialect: "sqlite3"}
	orm := &ormStub{
		engines:   map[string]*toolkit.Engine{"default": {Dialect: "postgres"}},
		metadatas: map[string]*toolkit.Metadata{"default": {}},
	}

	t.Run("explicit engines win", func(t *testing.T) {
		app := New(AppParams{
			Name:    "test",
			Engines: map[string]*toolkit.Engine{"default": eng},
			Orm:     orm,
		})

		require.Same(t, eng, app.Engines()["default"])
	})

	t.Run("orm supplies missing maps", func(t *testing.T) {
		app := New(AppParams{Name: "test", Orm: orm})
		require.Equal(t, "postgres", app.Engines()["default"].Dialect)
		require.Len(t, app.Metadatas(), 1)
	})

	t.Run("nothing configured", func(t *testing.T) {
		app := New(AppParams{Name: "test"})
		require.Nil(t, app.Engines())
		require.Nil(t, app.Metadatas())
	})
}
