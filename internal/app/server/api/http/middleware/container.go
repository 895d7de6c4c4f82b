package middleware

import "github.com/danielgtaylor/huma/v2"

// Container накапливает middleware для очередной группы операций
type Container struct {
	mws huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Add(mw func(huma.Context, func(huma.Context))) {
	c.mws = append(c.mws, mw)
}

// GetAllAndClear отдает накопленные middleware и очищает контейнер
func (c *Container) GetAllAndClear() huma.Middlewares {
	res := c.mws
	c.mws = nil
	if res == nil {
		res = huma.Middlewares{}
	}
	return res
}
