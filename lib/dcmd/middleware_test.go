package dcmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddlewareOrder(t *testing.T) {
	container := &Container{}

	i := 0

	container.AddMiddlewares(func(inner RunFunc) RunFunc {
		return func(d *Data) (interface{}, error) {
			assert.Equal(t, 0, i, "container middleware 1 should run first")
			i = 1
			return inner(d)
		}
	}, func(inner RunFunc) RunFunc {
		return func(d *Data) (interface{}, error) {
			assert.Equal(t, 1, i, "container middleware 2 should run second")
			i = 2
			return inner(d)
		}
	})

	cmd := &TestCommand{}
	container.AddCommand(cmd, NewTrigger("test").SetMiddlewares(func(inner RunFunc) RunFunc {
		return func(d *Data) (interface{}, error) {
			assert.Equal(t, 2, i, "trigger middleware should run after container middlewares")
			i = 3
			return inner(d)
		}
	}))

	sub, _ := container.Sub("sub")
	sub.AddMiddlewares(func(inner RunFunc) RunFunc {
		return func(d *Data) (interface{}, error) {
			assert.Equal(t, 2, i, "sub container middleware should run after the parent")
			i = 3
			return inner(d)
		}
	})

	sub.AddCommand(cmd, NewTrigger("test").SetMiddlewares(func(inner RunFunc) RunFunc {
		return func(d *Data) (interface{}, error) {
			assert.Equal(t, 3, i, "sub trigger middleware should run last")
			i = 4
			return inner(d)
		}
	}))

	doTest := func() {
		i = 0
		container.Run(&Data{MessageStrippedPrefix: "test", Source: TriggerSourceGuild, TriggerType: TriggerTypePrefix})
		assert.Equal(t, 3, i)

		i = 0
		resp, _ := container.Run(&Data{MessageStrippedPrefix: "sub test", Source: TriggerSourceGuild, TriggerType: TriggerTypePrefix})
		assert.Equal(t, 4, i)
		assert.Equal(t, TestResponse, resp)
	}

	doTest()
	container.BuildMiddlewareChains(nil)
	doTest()
}
