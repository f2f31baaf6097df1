// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterMatch(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	noop := func(w http.ResponseWriter, req *http.Request, p Params) {}
	r.Handle(http.MethodGet, "/v1/buckets", noop)
	r.Handle(http.MethodGet, "/v1/buckets/{bucket}/objects", noop)
	r.Handle(http.MethodGet, "/v1/buckets/{bucket}/objects/{object}", noop)
	r.Handle(http.MethodPut, "/v1/buckets/{bucket}/multipart-uploads/{upload_id}/parts/{part_number}", noop)

	tests := []struct {
		name       string
		method     string
		path       string
		wantMatch  bool
		wantParams Params
	}{
		{
			name:       "object path captures both params",
			method:     http.MethodGet,
			path:       "/v1/buckets/demo/objects/readme.txt",
			wantMatch:  true,
			wantParams: Params{"bucket": "demo", "object": "readme.txt"},
		},
		{
			name:       "list path does not shadow object path",
			method:     http.MethodGet,
			path:       "/v1/buckets/demo/objects",
			wantMatch:  true,
			wantParams: Params{"bucket": "demo"},
		},
		{
			name:      "segment count mismatch",
			method:    http.MethodGet,
			path:      "/v1/buckets/demo/objects/a/b",
			wantMatch: false,
		},
		{
			name:      "method mismatch",
			method:    http.MethodDelete,
			path:      "/v1/buckets",
			wantMatch: false,
		},
		{
			name:       "query string stripped before matching",
			method:     http.MethodGet,
			path:       "/v1/buckets/demo/objects?prefix=a",
			wantMatch:  true,
			wantParams: Params{"bucket": "demo"},
		},
		{
			name:       "trailing slash insignificant",
			method:     http.MethodGet,
			path:       "/v1/buckets/",
			wantMatch:  true,
			wantParams: nil,
		},
		{
			name:       "deep multipart part route",
			method:     http.MethodPut,
			path:       "/v1/buckets/b/multipart-uploads/u42/parts/3",
			wantMatch:  true,
			wantParams: Params{"bucket": "b", "upload_id": "u42", "part_number": "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler, params, ok := r.Match(tt.method, tt.path)
			assert.Equal(t, tt.wantMatch, ok)
			if !tt.wantMatch {
				return
			}
			require.NotNil(t, handler)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}
