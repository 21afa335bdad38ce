package terminal

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/EricSpencer00/ai-os-sub000/service/synthesizer"
	"github.com/EricSpencer00/ai-os-sub000/service/transcript"
	"github.com/EricSpencer00/ai-os-sub000/service/validator"
	"github.com/EricSpencer00/ai-os-sub000/tracing"
)

// Option customises a Service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithSynthesizer injects a synthesizer implementation, bypassing the HTTP
// client that would otherwise be built from config.
func WithSynthesizer(synth synthesizer.Synthesizer) Option {
	return func(s *Service) { s.synth = synth }
}

// WithValidatorOptions forwards options to the command validator (extra
// binary alternates, a stubbed PATH probe).
func WithValidatorOptions(options ...validator.Option) Option {
	return func(s *Service) { s.validatorOptions = append(s.validatorOptions, options...) }
}

// WithTranscriptStore overrides the transcript store built from config.
func WithTranscriptStore(store *transcript.Store) Option {
	return func(s *Service) { s.transcripts = store }
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter; an
// empty outputFile writes to standard output. First successful
// initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom span
// exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
