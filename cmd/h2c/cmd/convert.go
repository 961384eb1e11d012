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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	h2c "github.com/helmfile2compose/h2c-core/pkg/h2c"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/renderer"
)

var convertLongDesc = `Convert rendered Kubernetes manifests into a Docker-Compose project.

Examples:

  ### Convert an already-rendered manifest directory
  $ h2c convert --from-dir ./rendered --output-dir ./out

  ### Render a helmfile environment first, then convert
  $ h2c convert --helmfile-dir ./deploy -e production --output-dir ./out`

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert rendered Kubernetes manifests into a Docker-Compose project.",
	Long:  convertLongDesc,
	RunE:  runConvertCmd,
}

func init() {
	flags := convertCmd.Flags()
	flags.SortFlags = false

	flags.String("helmfile-dir", "", "Invoke the upstream renderer against this helmfile directory")
	flags.String("from-dir", "", "Skip rendering; read already-rendered manifests from this directory")
	flags.StringP("environment", "e", "", "Environment passed to the upstream renderer")
	flags.String("output-dir", "", "Target directory for all emitted files (required)")
	flags.String("compose-file", "", "Override the compose output filename (default compose.yml)")
	flags.String("extensions-dir", "", "Load extension plugins from this directory")
	flags.String("name", "", "Project name, stamped into the persisted project config")
	flags.Bool("watch", false, "Re-run the conversion whenever --from-dir changes (requires --from-dir)")

	_ = convertCmd.MarkFlagRequired("output-dir")

	rootCmd.AddCommand(convertCmd)
}

func runConvertCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	helmfileDir, _ := flags.GetString("helmfile-dir")
	fromDir, _ := flags.GetString("from-dir")
	environment, _ := flags.GetString("environment")
	outputDir, _ := flags.GetString("output-dir")
	composeFile, _ := flags.GetString("compose-file")
	extensionsDir, _ := flags.GetString("extensions-dir")
	name, _ := flags.GetString("name")
	watch, _ := flags.GetBool("watch")

	if (helmfileDir == "") == (fromDir == "") {
		return fmt.Errorf("exactly one of --helmfile-dir or --from-dir must be set")
	}
	if watch && fromDir == "" {
		return fmt.Errorf("--watch requires --from-dir (rendered manifests are watched directly, not re-rendered)")
	}

	inputDir := fromDir
	if helmfileDir != "" {
		rendered, err := renderer.Render(renderer.Options{HelmfileDir: helmfileDir, Environment: environment})
		if err != nil {
			return err
		}
		inputDir = rendered
	}

	opts := h2c.Options{
		InputDir:      inputDir,
		OutputDir:     outputDir,
		ExtensionsDir: extensionsDir,
		ComposeFile:   composeFile,
		ProjectName:   name,
	}

	if watch {
		return h2c.Watch(opts, func(result *h2c.Result, err error) {
			if err != nil {
				cmd.PrintErrln(err)
				return
			}
			for _, w := range result.Warnings {
				cmd.PrintErrln(w.String())
			}
			cmd.Printf("wrote %d service(s) to %s\n", result.ServiceCount, outputDir)
		})
	}

	result, err := h2c.Run(opts)
	if err != nil {
		return newExitCodeError(1, err)
	}

	for _, w := range result.Warnings {
		cmd.PrintErrln(w.String())
	}

	if result.ServiceCount == 0 {
		return newExitCodeError(2, fmt.Errorf("conversion produced zero compose services"))
	}

	cmd.Printf("wrote %d service(s) to %s\n", result.ServiceCount, outputDir)
	return nil
}
