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
	"bytes"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/helmfile2compose/h2c-core/internal/log"
)

// Load reads a project config from path. A missing file is not an error:
// the caller gets a fresh, defaulted Project named after name. A present
// but corrupt file is fatal (spec §7: "a corrupt project-config" is one of
// only two fatal error conditions).
func Load(path, name string) (*Project, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p := &Project{Version: CurrentVersion, Name: name}
		applyDefaults(p)
		return p, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading project config %s", path)
	}

	migrated, didMigrate, err := migrateLegacyKeys(data)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed project config %s", path)
	}
	if didMigrate {
		log.Infof("project config %s uses legacy keys; migrating on load (will be rewritten on next save)", path)
	}

	var p Project
	if err := yaml.Unmarshal(migrated, &p); err != nil {
		return nil, errors.Wrapf(err, "malformed project config %s", path)
	}

	if p.Name == "" {
		p.Name = name
	}
	applyDefaults(&p)

	if err := Validate(&p); err != nil {
		return nil, errors.Wrapf(err, "invalid project config %s", path)
	}

	return &p, nil
}

// Validate checks structural validity of a project config using struct
// tags, the same way the teacher validates its x-k8s extension
// (config.K8SConfiguration.Validate).
func Validate(p *Project) error {
	if err := validator.New().Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return errors.New(verrs[0].Error())
		}
		return err
	}
	return nil
}

func applyDefaults(p *Project) {
	if p.Version == "" {
		p.Version = CurrentVersion
	}
	if p.VolumeRoot == "" {
		p.VolumeRoot = DefaultVolumeRoot
	}
	if p.IngressTypes == nil {
		p.IngressTypes = map[string]string{}
	}
}

// Save writes the project config to path, indented the way the teacher's
// MarshalIndent writes the application manifest (2-space indent, yaml.v3).
func Save(path string, p *Project) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(err, "marshalling project config")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "closing project config encoder")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
