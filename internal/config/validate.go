// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks raw against Schema, returning an error describing
// every schema violation rather than exiting the process — Load needs
// to hand the error back to its caller instead of terminating on its
// behalf.
func Validate(raw json.RawMessage) error {
	sch, err := jsonschema.CompileString("dstc-config.json", Schema)
	if err != nil {
		return fmt.Errorf("config: compiling schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("config: invalid json: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("config: schema violation: %w", err)
	}
	return nil
}
