package exec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/pkg/logger"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/brimdata/jsoniq/runtime/exec"
	"github.com/brimdata/jsoniq/runtime/expr"
	"github.com/brimdata/jsoniq/runtime/op"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var x = jsoniq.NewName("x")

func newEnvironment(t *testing.T, materializationCap int) *exec.Environment {
	conf := &runtime.FileConfig{
		MaterializationCap: materializationCap,
		Log:                logger.Config{Path: "off"},
	}
	env, err := exec.NewEnvironment(conf, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func literal(vals ...int64) *expr.Literal {
	items := make([]jsoniq.Item, 0, len(vals))
	for _, v := range vals {
		items = append(items, jsoniq.Integer(v))
	}
	return expr.NewLiteral(jsoniq.Loc{}, items...)
}

func TestRun(t *testing.T) {
	env := newEnvironment(t, 0)
	dctx := env.NewContext(context.Background())
	items, err := exec.Run(dctx, literal(1, 2))
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", jsoniq.SerializeSequence(items))
	items, err = exec.RunDistributed(dctx, expr.NewParallelize(literal(3, 4), jsoniq.Loc{}))
	require.NoError(t, err)
	assert.Equal(t, "3\n4\n", jsoniq.SerializeSequence(items))
	// Local iterators run locally.
	items, err = exec.RunDistributed(dctx, literal(5))
	require.NoError(t, err)
	assert.Equal(t, "5\n", jsoniq.SerializeSequence(items))
}

func TestMaterializationCap(t *testing.T) {
	env := newEnvironment(t, 2)
	dctx := env.NewContext(context.Background())
	_, err := exec.RunDistributed(dctx, expr.NewParallelize(literal(1, 2, 3), jsoniq.Loc{}))
	assert.True(t, errors.Is(err, jsoniq.MaterializationCapExceeded))

	f, err := op.NewFor(nil, x, jsoniq.Name{}, expr.NewParallelize(literal(1, 2, 3), jsoniq.Loc{}), jsoniq.NewLoc(1, 1))
	require.NoError(t, err)
	_, err = exec.CollectFrame(dctx, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsoniq.MaterializationCapExceeded))
	assert.Contains(t, err.Error(), "more than 2 tuples")
}

func TestCollectFrame(t *testing.T) {
	env := newEnvironment(t, 0)
	dctx := env.NewContext(context.Background())
	f, err := op.NewFor(nil, x, jsoniq.Name{}, expr.NewParallelize(literal(7, 8), jsoniq.Loc{}), jsoniq.Loc{})
	require.NoError(t, err)
	tuples, err := exec.CollectFrame(dctx, f)
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, "{$x: 7}", tuples[0].String())
	assert.Equal(t, "{$x: 8}", tuples[1].String())

	local, err := op.NewFor(nil, x, jsoniq.Name{}, literal(1), jsoniq.Loc{})
	require.NoError(t, err)
	_, err = exec.CollectFrame(dctx, local)
	assert.Error(t, err)
	tuples, err = exec.CollectTuples(dctx, local)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
}

// panicky is an iterator whose Open panics.
type panicky struct {
	*expr.Literal
}

func (panicky) Open(*runtime.DynamicContext) error {
	panic("broken iterator")
}

func (panicky) Dependencies() demand.Set {
	return demand.None()
}

func TestRunCatchesPanic(t *testing.T) {
	env := newEnvironment(t, 0)
	_, err := exec.Run(env.NewContext(context.Background()), panicky{literal(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: broken iterator")
}

func TestExplain(t *testing.T) {
	assert.Equal(t, "Parallelize (rdd)\n  Literal 1 (local)\n", exec.Explain(expr.NewParallelize(literal(1), jsoniq.Loc{})))
}
