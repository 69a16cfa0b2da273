// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestProvider(t *testing.T) {
	t.Run("uses the global meter provider", func(t *testing.T) {
		previous := otel.GetMeterProvider()
		recorder := &recordingMeterProvider{MeterProvider: noop.NewMeterProvider()}
		otel.SetMeterProvider(recorder)
		t.Cleanup(func() { otel.SetMeterProvider(previous) })

		provider := New()
		require.NotNil(t, provider.Meter())
		require.Equal(t, recorder, provider.meterProvider)
		require.Equal(t, []string{instrumentationName}, recorder.names)
	})

	t.Run("with a custom meter provider", func(t *testing.T) {
		custom := &recordingMeterProvider{MeterProvider: noop.NewMeterProvider()}
		provider := New(WithMeterProvider(custom))
		require.Equal(t, custom, provider.meterProvider)
		require.Equal(t, []string{instrumentationName}, custom.names)
	})

	t.Run("nil meter provider is ignored", func(t *testing.T) {
		provider := New(WithMeterProvider(nil))
		require.NotNil(t, provider.meterProvider)
		require.NotNil(t, provider.Meter())
	})
}

type recordingMeterProvider struct {
	metric.MeterProvider
	names []string
}

func (p *recordingMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	p.names = append(p.names, name)
	return p.MeterProvider.Meter(name, opts...)
}
