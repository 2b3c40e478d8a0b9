package demand_test

import (
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/stretchr/testify/assert"
)

var (
	x = jsoniq.NewName("x")
	y = jsoniq.NewName("y")
	z = jsoniq.NewName("z")
)

func TestUnionMerges(t *testing.T) {
	a := demand.Union(demand.Of(x, demand.Count), demand.Of(y, demand.Max))
	b := demand.Union(demand.Of(x, demand.Count), demand.Of(y, demand.Min), demand.Of(z, demand.Full))
	u := demand.Union(a, b)
	assert.Equal(t, demand.Set{x: demand.Count, y: demand.Full, z: demand.Full}, u)
	assert.Equal(t, "{$x:count, $y:full, $z:full}", u.String())
	// Arguments are unchanged.
	assert.Equal(t, demand.Max, a[y])
}

func TestDeleteCopiesOnWrite(t *testing.T) {
	a := demand.Set{x: demand.Full, y: demand.Count}
	b := demand.Delete(a, y, z)
	assert.Equal(t, demand.Set{x: demand.Full}, b)
	assert.Len(t, a, 2)
	assert.Equal(t, a, demand.Delete(a, z))
}

func TestRestrict(t *testing.T) {
	a := demand.Set{x: demand.Full, y: demand.Count}
	assert.Equal(t, demand.Set{y: demand.Count}, demand.Restrict(a, []jsoniq.Name{y, z}))
	assert.True(t, demand.IsNone(demand.Restrict(a, nil)))
	assert.Equal(t, []jsoniq.Name{x, y}, demand.All([]jsoniq.Name{y, x}).Names())
}
