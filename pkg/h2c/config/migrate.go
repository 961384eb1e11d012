/**
 * Copyright 2020 Appvia Ltd <info@appvia.io>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"gopkg.in/yaml.v2"
)

// legacyKeyRenames maps a pre-v1 project-config key to its current name.
// Rather than teaching the Project struct two sets of yaml tags, a legacy
// file is loaded into a generic map, renamed, then re-marshalled through
// yaml.v2 (kept around purely for this one-way decode path, matching the
// teacher's own habit of carrying both yaml.v2 and yaml.v3 for different
// generations of config) before being unmarshalled into the real struct
// with yaml.v3.
var legacyKeyRenames = map[string]string{
	"volumeRoot":     "volume_root",
	"ingressTypes":   "ingress_types",
	"disableIngress": "disable_ingress",
}

// migrateLegacyKeys renames legacy top-level keys in raw project-config
// bytes, reporting whether any rename fired (spec §7
// ConfigMigrationNotice: a non-fatal stderr notice, not an error).
func migrateLegacyKeys(raw []byte) ([]byte, bool, error) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, false, err
	}
	if generic == nil {
		return raw, false, nil
	}

	migrated := false
	for oldKey, newKey := range legacyKeyRenames {
		if v, ok := generic[oldKey]; ok {
			if _, clash := generic[newKey]; !clash {
				generic[newKey] = v
			}
			delete(generic, oldKey)
			migrated = true
		}
	}

	if !migrated {
		return raw, false, nil
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
