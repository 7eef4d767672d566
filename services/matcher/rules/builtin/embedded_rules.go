// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package builtin embeds the default hiring rule set into the binary. Baking
the YAML in at compile time means a deployment always ships a working rule
set and operators can checksum the binary's rules without filesystem access.
*/
package builtin

import (
	_ "embed"
)

// DefaultRuleSet holds the raw byte content of rules.yaml.
//
// Pass these bytes to a rules.Registry to compile the default engine:
//
//	engine, hash, err := registry.Compile(builtin.DefaultRuleSet)
//
//go:embed rules.yaml
var DefaultRuleSet []byte
