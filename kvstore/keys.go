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

package kvstore

import (
	"path"
	"strings"
)

// DefaultPrefix is the top level key used when none is configured
const DefaultPrefix = "clustermgr"

const (
	configurationSegment = "configuration"
	clusteringSegment    = "clustering"
)

// ConfigurationKey returns the key of a configuration or queue document:
// /<prefix>/<site>/configuration/<resourceKey>
func ConfigurationKey(prefix, site, resourceKey string) string {
	return buildKey(prefix, site, configurationSegment, resourceKey)
}

// ClusteringKey returns the key of a cluster view document:
// /<prefix>/<site>/clustering/<storeType>
func ClusteringKey(prefix, site, storeType string) string {
	return buildKey(prefix, site, clusteringSegment, storeType)
}

func buildKey(prefix, site, segment, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join("/", prefix, strings.Trim(site, "/"), segment, strings.Trim(name, "/"))
}
