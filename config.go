package resx

import (
	"log/slog"
	"maps"
	"sync/atomic"

	"github.com/meigma/resx/hashing"
	"github.com/meigma/resx/producers/data"
	"github.com/meigma/resx/producers/file"
	"github.com/meigma/resx/producers/transform"
	"github.com/meigma/resx/resource"
	"github.com/meigma/resx/rpc"
)

// Config is the process-wide configuration. Every operation reads the
// current value; there is no per-handle caching, so reconfiguration is
// observed by the very next call.
type Config struct {
	// Hash names the default digest algorithm used by Finalise and Hash.
	Hash string

	// Producers maps URI schemes to producers, merged over the built-in
	// data/file/transform bindings.
	Producers map[string]resource.Producer

	// Combiner collapses stream chunks during materialisation. Nil means
	// the default byte concatenation.
	Combiner resource.Combiner

	// ReducerHook remaps content reducers per media type and kind.
	ReducerHook resource.ReducerHook

	// File is the file producer's configuration: node identity, access
	// matrix, RPC caller.
	File file.Config
}

var current atomic.Pointer[Config]

func defaultConfig() Config {
	return Config{Hash: hashing.DefaultAlgorithm}
}

func init() {
	cfg := defaultConfig()
	current.Store(&cfg)
}

// config returns the current configuration value.
func config() Config {
	return *current.Load()
}

// Option mutates the configuration under Configure.
type Option func(*Config)

// Configure applies options on top of the current configuration and
// swaps the result in atomically.
func Configure(opts ...Option) {
	cfg := config()
	cfg.Producers = maps.Clone(cfg.Producers)
	cfg.File.Access = append([]file.AccessEntry(nil), cfg.File.Access...)
	for _, opt := range opts {
		opt(&cfg)
	}
	current.Store(&cfg)
}

// ResetConfig restores the built-in defaults. Mainly useful in tests.
func ResetConfig() {
	cfg := defaultConfig()
	current.Store(&cfg)
}

// WithHash sets the default digest algorithm by name.
func WithHash(algorithm string) Option {
	return func(c *Config) {
		c.Hash = algorithm
	}
}

// WithProducer binds a producer to every scheme it declares.
func WithProducer(p resource.Producer) Option {
	return func(c *Config) {
		if c.Producers == nil {
			c.Producers = make(map[string]resource.Producer)
		}
		for _, scheme := range p.Schemes() {
			c.Producers[scheme] = p
		}
	}
}

// WithProducerScheme binds a producer to one explicit scheme.
func WithProducerScheme(scheme string, p resource.Producer) Option {
	return func(c *Config) {
		if c.Producers == nil {
			c.Producers = make(map[string]resource.Producer)
		}
		c.Producers[scheme] = p
	}
}

// WithCombiner sets the stream materialisation combiner.
func WithCombiner(combine resource.Combiner) Option {
	return func(c *Config) {
		c.Combiner = combine
	}
}

// WithReducerHook sets the per-media-type reducer hook.
func WithReducerHook(hook resource.ReducerHook) Option {
	return func(c *Config) {
		c.ReducerHook = hook
	}
}

// WithNode sets the local node identity (user@host form).
func WithNode(node string) Option {
	return func(c *Config) {
		c.File.Node = node
	}
}

// WithAccess replaces the file access matrix.
func WithAccess(entries ...file.AccessEntry) Option {
	return func(c *Config) {
		c.File.Access = entries
	}
}

// WithRPC sets the caller carrying file operations to remote nodes.
func WithRPC(caller rpc.Caller) Option {
	return func(c *Config) {
		c.File.Caller = caller
	}
}

// WithLogger sets the file producer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.File.Logger = logger
	}
}

// Built-in producers. They read the live configuration through the
// package resolver, so a single value of each serves every operation.
var (
	dataProducer      = data.New()
	transformProducer = transform.New(resolver{})
	fileProducer      = file.New(resolver{}, func() file.Config { return config().File })

	defaultProducers = map[string]resource.Producer{
		data.Scheme:      dataProducer,
		transform.Scheme: transformProducer,
		file.Scheme:      fileProducer,
	}
)

// FileProducer returns the built-in file producer, for registering its
// RPC service on a server:
//
//	server.Register(file.ServiceName, resx.FileProducer().Service())
func FileProducer() *file.Producer {
	return fileProducer
}
