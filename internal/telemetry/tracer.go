// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry wires an in-process OpenTelemetry tracer: spans
// are created and recorded around backend calls and sandbox
// invocations, but nothing is exported anywhere. Gatemini runs on a
// single host behind no remote-admin surface (non-goal), so there is
// no collector to ship spans to; the instrumentation points exist so
// the status CLI command, and future exporters, have something real
// to hang off.
package telemetry

import (
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gatemini/gatemini"

// NewTracerProvider builds a tracer provider with no span processor
// attached, matching tombee-conductor's internal/tracing/otel.go
// no-export mode: every span's End() call is a no-op sink.
func NewTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

// Install registers provider as the process-wide default, so every
// call to Tracer() anywhere in the process resolves against it.
func Install(provider *sdktrace.TracerProvider) {
	otel.SetTracerProvider(provider)
}

// Tracer returns the shared tracer used for backend-call and
// sandbox-invocation spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
