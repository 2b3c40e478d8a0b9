package runtime

import (
	"bytes"
	"fmt"
	"os"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/pkg/logger"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// DefaultMaterializationCap bounds the number of items a distributed value
// may hold when it is collected into a local sequence.
const DefaultMaterializationCap = 100000

// Config carries what a root DynamicContext needs to run a query.
type Config struct {
	MaterializationCap int
	Logger             *zap.Logger
	// Engine runs the distributed parts of a plan.  A nil Engine restricts
	// the context to local execution.
	Engine   frame.Engine
	Builtins Builtins
}

func (c Config) withDefaults() Config {
	if c.MaterializationCap <= 0 {
		c.MaterializationCap = DefaultMaterializationCap
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Builtins == nil {
		c.Builtins = DefaultBuiltins
	}
	return c
}

// Builtins reports which function identifiers are taken by the builtin
// library.  User-defined functions may not reuse them.
type Builtins interface {
	IsBuiltin(jsoniq.FunctionIdentifier) bool
}

// BuiltinSet is a Builtins backed by a set of identifiers.
type BuiltinSet map[jsoniq.FunctionIdentifier]struct{}

func NewBuiltinSet(ids ...jsoniq.FunctionIdentifier) BuiltinSet {
	s := make(BuiltinSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (b BuiltinSet) IsBuiltin(id jsoniq.FunctionIdentifier) bool {
	_, ok := b[id]
	return ok
}

func fn(local string, arity int) jsoniq.FunctionIdentifier {
	return jsoniq.NewFunctionIdentifier(jsoniq.NewQName(jsoniq.FunctionsNamespace, local), arity)
}

// DefaultBuiltins reserves the identifiers of the core library functions
// the engine knows about.
var DefaultBuiltins = NewBuiltinSet(
	fn("count", 1),
	fn("sum", 1),
	fn("avg", 1),
	fn("max", 1),
	fn("min", 1),
	fn("empty", 1),
	fn("exists", 1),
	fn("position", 0),
	fn("last", 0),
	fn("string", 1),
	fn("boolean", 1),
	fn("not", 1),
)

// FileConfig is the YAML form of a Config.
type FileConfig struct {
	MaterializationCap int           `yaml:"materialization-cap"`
	Log                logger.Config `yaml:"log"`
	SQLite             SQLiteConfig  `yaml:"sqlite"`
}

type SQLiteConfig struct {
	DSN string `yaml:"dsn"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

func ParseConfig(b []byte) (*FileConfig, error) {
	var conf FileConfig
	if len(bytes.TrimSpace(b)) == 0 {
		return &conf, nil
	}
	if err := yaml.UnmarshalWithOptions(b, &conf, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	if conf.MaterializationCap < 0 {
		return nil, fmt.Errorf("materialization-cap must not be negative")
	}
	return &conf, nil
}
