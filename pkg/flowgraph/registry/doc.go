// Package registry provides a generic thread-safe registry of named values.
//
// It backs the pluggable parts of the pipeline: generation providers and
// document output formats are both looked up by name at startup.
//
//	type Factory func(cfg Config) (Client, error)
//
//	providers := registry.New[string, Factory]("provider")
//	providers.Register("OLLAMA", newOpenAICompatible)
//
//	factory, err := providers.Lookup("OLLAMA")
//	if err != nil {
//	    // err lists the registered names
//	}
//
// Keys are returned in sorted order so error messages and help output are
// stable.
package registry
