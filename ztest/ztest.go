// Package ztest runs formulaic tests ("ztests") of FLWOR pipelines.  A ztest
// builds a pipeline of clauses over an input sequence, evaluates it both
// locally and on the distributed engine, and checks each run for an
// expected output or error.
//
// A ztest is defined in a YAML file.
//
//	input: |
//	  {"x":3}
//	  {"x":1}
//	  {"x":2}
//
//	clauses:
//	  - for: {var: o, in: input}
//	  - order-by:
//	      keys:
//	        - expr: $o.x
//	          order: desc
//	  - count: c
//
//	return: $c, $o.x
//
//	output: |
//	  1
//	  3
//	  2
//	  2
//	  3
//	  1
//
// Output is the serialization of the returned items, one per line.  Error,
// when set, is the expected error message followed by a newline.  The
// clause at index i of the clauses list is located at line i+1 and the
// return expression at the line after the last clause.
//
// When the pipeline runs on the distributed engine, the expression of the
// first for clause is parallelized.  The modes field restricts a test to
// "local" or "distributed" evaluation.
//
// Expressions are written in a small syntax: a comma-separated list of
// terms, each being "input" (the input sequence), "()", a variable
// reference with optional object lookups like "$o.a.b", "count($x)" for
// the count of a variable, "parallelize(expr)", or a JSON value.
//
// Ztest YAML files for a package should reside in a subdirectory named
// testdata/ztest.
//
//	pkg/
//	  pkg.go
//	  pkg_test.go
//	  testdata/
//	    ztest/
//	      test-1.yaml
//	      test-2.yaml
//	      ...
//
// Name YAML files descriptively since each ztest runs as a subtest
// named for the file that defines it.
//
// pkg_test.go should contain a Go test named TestZTest that calls Run.
//
//	func TestZTest(t *testing.T) { ztest.Run(t, "testdata/ztest") }
//
// Tests can be skipped by setting the skip field to a non-empty string.  A
// message containing the string will be written to the test log.
package ztest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/semantic"
	"github.com/brimdata/jsoniq/order"
	"github.com/brimdata/jsoniq/pkg/logger"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/brimdata/jsoniq/runtime/exec"
	"github.com/brimdata/jsoniq/runtime/expr"
	"github.com/brimdata/jsoniq/runtime/op"
	"github.com/goccy/go-yaml"
	yamlparser "github.com/goccy/go-yaml/parser"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
)

const (
	Local       = "local"
	Distributed = "distributed"
)

type Bundle struct {
	TestName string
	FileName string
	Test     *ZTest
	Error    error
}

func Load(dirname string) ([]Bundle, error) {
	var bundles []Bundle
	fileinfos, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}
	for _, fi := range fileinfos {
		filename := fi.Name()
		const dotyaml = ".yaml"
		if !strings.HasSuffix(filename, dotyaml) {
			continue
		}
		testname := strings.TrimSuffix(filename, dotyaml)
		filename = filepath.Join(dirname, filename)
		zt, err := FromYAMLFile(filename)
		bundles = append(bundles, Bundle{testname, filename, zt, err})
	}
	return bundles, nil
}

// Run runs the ztests in the directory named dirname.  For each file f.yaml in
// the directory, Run calls FromYAMLFile to load a ztest and then runs it in
// subtest named f.
func Run(t *testing.T, dirname string) {
	bundles, err := Load(dirname)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bundles {
		t.Run(b.TestName, func(t *testing.T) {
			t.Parallel()
			if b.Error != nil {
				t.Fatalf("%s: %s", b.FileName, b.Error)
			}
			b.Test.Run(t, b.FileName)
		})
	}
}

// ZTest defines a ztest.
type ZTest struct {
	Skip string `yaml:"skip,omitempty"`

	Input         string   `yaml:"input,omitempty"`
	Modes         []string `yaml:"modes,omitempty"`
	EmptyGreatest bool     `yaml:"empty-greatest,omitempty"`
	Clauses       []Clause `yaml:"clauses"`
	Return        string   `yaml:"return"`
	Output        string   `yaml:"output,omitempty"`
	Error         string   `yaml:"error,omitempty"`
}

// Clause defines one FLWOR clause.  Exactly one field must be set.
type Clause struct {
	For     *ForClause     `yaml:"for,omitempty"`
	Let     *LetClause     `yaml:"let,omitempty"`
	Where   string         `yaml:"where,omitempty"`
	Count   string         `yaml:"count,omitempty"`
	OrderBy *OrderByClause `yaml:"order-by,omitempty"`
}

type ForClause struct {
	Var string `yaml:"var"`
	At  string `yaml:"at,omitempty"`
	In  string `yaml:"in"`
}

type LetClause struct {
	Var  string `yaml:"var"`
	Expr string `yaml:"expr"`
}

type OrderByClause struct {
	Stable bool      `yaml:"stable,omitempty"`
	Keys   []SortKey `yaml:"keys"`
}

type SortKey struct {
	Expr      string      `yaml:"expr"`
	Order     order.Which `yaml:"order,omitempty"`
	Empty     order.Empty `yaml:"empty,omitempty"`
	Collation string      `yaml:"collation,omitempty"`
}

func (c *Clause) check() error {
	var n int
	if c.For != nil {
		n++
	}
	if c.Let != nil {
		n++
	}
	if c.Where != "" {
		n++
	}
	if c.Count != "" {
		n++
	}
	if c.OrderBy != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("clause must have exactly one of for, let, where, count or order-by (found %d)", n)
	}
	return nil
}

func (z *ZTest) check() error {
	if len(z.Clauses) == 0 {
		return errors.New("clauses field missing")
	}
	if z.Return == "" {
		return errors.New("return field missing")
	}
	for i := range z.Clauses {
		if err := z.Clauses[i].check(); err != nil {
			return fmt.Errorf("clause %d: %w", i+1, err)
		}
	}
	for _, m := range z.Modes {
		if m != Local && m != Distributed {
			return fmt.Errorf("unknown mode %q", m)
		}
	}
	return nil
}

// FromYAMLFile loads a ZTest from the YAML file named filename.
func FromYAMLFile(filename string) (*ZTest, error) {
	f, err := yamlparser.ParseFile(filename, 0)
	if err != nil {
		return nil, err
	}
	if len(f.Docs) != 1 {
		return nil, errors.New("file must contain one YAML document")
	}
	var z ZTest
	if err := yaml.NodeToValue(f.Docs[0].Body, &z, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	return &z, nil
}

func (z *ZTest) modes() []string {
	if len(z.Modes) == 0 {
		return []string{Local, Distributed}
	}
	return z.Modes
}

// Build returns a new instance of the test's pipeline for mode.
func (z *ZTest) Build(mode string) (runtime.Iterator, error) {
	input, err := jsoniq.ParseJSONSequence(z.Input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	sctx := semantic.NewModuleContext()
	sctx.SetEmptySequenceOrderLeast(!z.EmptyGreatest)
	var child runtime.TupleIterator
	for i, c := range z.Clauses {
		loc := jsoniq.NewLoc(i+1, 1)
		if child, err = c.build(sctx, child, input, mode == Distributed, loc); err != nil {
			return nil, err
		}
	}
	loc := jsoniq.NewLoc(len(z.Clauses)+1, 1)
	ret, err := ParseExpr(z.Return, input, loc)
	if err != nil {
		return nil, err
	}
	return op.NewReturn(child, ret, loc)
}

func (c *Clause) build(sctx *semantic.StaticContext, child runtime.TupleIterator, input []jsoniq.Item, distributed bool, loc jsoniq.Loc) (runtime.TupleIterator, error) {
	if child == nil && c.For == nil && c.Let == nil {
		return nil, fmt.Errorf("%s: a pipeline must start with a for or let clause", loc)
	}
	switch {
	case c.For != nil:
		e, err := ParseExpr(c.For.In, input, loc)
		if err != nil {
			return nil, err
		}
		if child == nil && distributed {
			e = expr.NewParallelize(e, loc)
		}
		var at jsoniq.Name
		if c.For.At != "" {
			at = jsoniq.NewName(c.For.At)
		}
		return op.NewFor(child, jsoniq.NewName(c.For.Var), at, e, loc)
	case c.Let != nil:
		e, err := ParseExpr(c.Let.Expr, input, loc)
		if err != nil {
			return nil, err
		}
		return op.NewLet(child, jsoniq.NewName(c.Let.Var), e, loc)
	case c.Where != "":
		e, err := ParseExpr(c.Where, input, loc)
		if err != nil {
			return nil, err
		}
		return op.NewWhere(child, e, loc)
	case c.Count != "":
		return op.NewCount(child, jsoniq.NewName(c.Count), loc), nil
	default:
		var keys []expr.SortExpr
		for _, k := range c.OrderBy.Keys {
			e, err := ParseExpr(k.Expr, input, loc)
			if err != nil {
				return nil, err
			}
			keys = append(keys, expr.NewSortExpr(e, k.Order, k.Empty, k.Collation))
		}
		return op.NewOrderBy(sctx, child, keys, c.OrderBy.Stable, loc)
	}
}

func (z *ZTest) ShouldSkip() string {
	return z.Skip
}

// RunInternal evaluates the test in each of its modes concurrently, each
// with its own pipeline and engine.
func (z *ZTest) RunInternal(ctx context.Context) error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	modes := z.modes()
	errs := make([]error, len(modes))
	var g errgroup.Group
	for i, mode := range modes {
		g.Go(func() error {
			if err := z.diffInternal(z.run(ctx, mode)); err != nil {
				errs[i] = fmt.Errorf("=== %s ===\n%w", mode, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (z *ZTest) run(ctx context.Context, mode string) (string, error) {
	env, err := exec.NewEnvironment(&runtime.FileConfig{Log: logger.Config{Path: "off"}}, nil)
	if err != nil {
		return "", err
	}
	defer env.Close()
	it, err := z.Build(mode)
	if err != nil {
		return "", err
	}
	dctx := env.NewContext(ctx)
	var items []jsoniq.Item
	if mode == Distributed {
		items, err = exec.RunDistributed(dctx, it)
	} else {
		items, err = exec.Run(dctx, it)
	}
	return jsoniq.SerializeSequence(items), err
}

func (z *ZTest) diffInternal(out string, err error) error {
	var outDiffErr, errDiffErr error
	if z.Output != out {
		outDiffErr = diffErr("output", z.Output, out)
	}
	var errStr string
	if err != nil {
		// Append newline if err doesn't end with one.
		errStr = strings.TrimSuffix(err.Error(), "\n") + "\n"
	}
	if z.Error != errStr {
		errDiffErr = diffErr("error", z.Error, errStr)
	}
	return errors.Join(outDiffErr, errDiffErr)
}

func (z *ZTest) Run(t *testing.T, filename string) {
	if msg := z.ShouldSkip(); msg != "" {
		t.Skip("skipping test:", msg)
	}
	if err := z.RunInternal(t.Context()); err != nil {
		t.Fatalf("%s: %s", filename, err)
	}
}

// HasMode reports whether the test runs in mode.
func (z *ZTest) HasMode(mode string) bool {
	return slices.Contains(z.modes(), mode)
}

func diffErr(name, expected, actual string) error {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		FromFile: "expected",
		B:        difflib.SplitLines(actual),
		ToFile:   "actual",
		Context:  5,
	})
	if err != nil {
		panic("ztest: " + err.Error())
	}
	return fmt.Errorf("expected and actual %s differ:\n%s", name, diff)
}
